package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/ajohq/ajolink/service/contract"
	"github.com/ajohq/ajolink/service/signer"
)

func groupCommands() *cli.Command {
	return &cli.Command{
		Name:  "group",
		Usage: "Ajo group factory commands",
		Subcommands: []*cli.Command{
			groupStatsCommand(),
			groupListCommand(),
			groupGetCommand(),
			groupCreateCommand(),
			groupStatusCommand(),
			groupMemberCommand(),
			groupInitPhaseCommand(),
			groupFinalizeCommand(),
			groupDeactivateCommand(),
		},
	}
}

func groupIDArg(c *cli.Context) (uint64, error) {
	if c.NArg() < 1 {
		return 0, fmt.Errorf("group id is required")
	}
	id, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid group id %q: %w", c.Args().Get(0), err)
	}
	return id, nil
}

func groupStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregate factory statistics",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			stats, err := e.gateway.FactoryStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch factory stats: %w", err)
			}

			if jsonWanted(c) {
				return writeJSON(c, stats)
			}
			fmt.Printf("Groups:        %d (%d active)\n", stats.TotalGroups, stats.ActiveGroups)
			fmt.Printf("Members:       %d\n", stats.TotalMembers)
			fmt.Printf("Value locked:  %s\n", stats.TotalValueLocked)
			return nil
		},
	}
}

func groupListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List groups registered with the factory",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "offset",
				Usage: "Pagination offset",
			},
			&cli.Uint64Flag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum groups to fetch",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			groups, hasMore, err := e.gateway.ListGroups(ctx, c.Uint64("offset"), c.Uint64("limit"))
			if err != nil {
				return fmt.Errorf("failed to list groups: %w", err)
			}

			if jsonWanted(c) {
				return writeJSON(c, map[string]interface{}{
					"groups":   groups,
					"has_more": hasMore,
				})
			}
			if len(groups) == 0 {
				fmt.Println("No groups found")
				return nil
			}
			for _, g := range groups {
				active := "active"
				if !g.IsActive {
					active = "inactive"
				}
				fmt.Printf("%4d  %-30s %-8s created %s\n",
					g.ID, g.Name, active, g.CreatedAt.Format("2006-01-02"))
			}
			if hasMore {
				fmt.Println("... more groups available, increase --offset")
			}
			return nil
		},
	}
}

func groupGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one group's record",
		ArgsUsage: "GROUP_ID",
		Action: func(c *cli.Context) error {
			id, err := groupIDArg(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			info, err := e.gateway.GetGroup(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch group %d: %w", id, err)
			}

			if jsonWanted(c) {
				return writeJSON(c, info)
			}
			fmt.Printf("Group %d: %s\n", info.ID, info.Name)
			fmt.Printf("  Active:     %t\n", info.IsActive)
			fmt.Printf("  Creator:    %s\n", info.Creator.Hex())
			fmt.Printf("  Created:    %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("  Core:       %s\n", info.CoreAddress.Hex())
			fmt.Printf("  Members:    %s\n", info.MembersAddress.Hex())
			fmt.Printf("  Collateral: %s\n", info.CollateralAddress.Hex())
			fmt.Printf("  Payments:   %s\n", info.PaymentsAddress.Hex())
			fmt.Printf("  Governance: %s\n", info.GovernanceAddress.Hex())
			return nil
		},
	}
}

func groupCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a new ajo group (requires a paired wallet)",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "governance",
				Usage: "Deploy the group with governance enabled",
			},
			&cli.BoolFlag{
				Name:  "scheduling",
				Usage: "Deploy the group with payout scheduling enabled",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("group name is required")
			}
			name := c.Args().Get(0)

			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.ensurePaired(ctx); err != nil {
				return err
			}

			id, err := e.gateway.CreateGroup(ctx, name, contract.GroupFlags{
				WithGovernance: c.Bool("governance"),
				WithScheduling: c.Bool("scheduling"),
			})
			if err != nil {
				return fmt.Errorf("failed to create group: %w", err)
			}

			if jsonWanted(c) {
				return writeJSON(c, map[string]interface{}{"group_id": id, "name": name})
			}
			fmt.Printf("✓ Group created\n")
			fmt.Printf("  ID:   %d\n", id)
			fmt.Printf("  Name: %s\n", name)
			fmt.Printf("Run `ajolink group init-phase %d 2` to continue setup\n", id)
			return nil
		},
	}
}

func groupStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a group's operational status",
		ArgsUsage: "GROUP_ID",
		Action: func(c *cli.Context) error {
			id, err := groupIDArg(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			e.details.SetActive(id)
			status, err := e.gateway.GroupStatus(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch status for group %d: %w", id, err)
			}

			if jsonWanted(c) {
				return writeJSON(c, status)
			}
			fmt.Printf("Group %d status\n", id)
			fmt.Printf("  Members:        %d\n", status.TotalMembers)
			fmt.Printf("  Current cycle:  %d\n", status.CurrentCycle)
			fmt.Printf("  Accepting:      %t\n", status.CanAcceptMembers)
			fmt.Printf("  Governance:     %t\n", status.HasActiveGovernance)
			fmt.Printf("  Scheduling:     %t\n", status.HasActiveScheduling)
			return nil
		},
	}
}

func groupMemberCommand() *cli.Command {
	return &cli.Command{
		Name:      "member",
		Usage:     "Show a member's snapshot within a group",
		ArgsUsage: "GROUP_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "Member EVM address (defaults to the paired account)",
			},
		},
		Action: func(c *cli.Context) error {
			id, err := groupIDArg(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			var account common.Address
			if hex := c.String("address"); hex != "" {
				if !common.IsHexAddress(hex) {
					return fmt.Errorf("invalid address %q", hex)
				}
				account = common.HexToAddress(hex)
			} else {
				if err := e.ensurePaired(ctx); err != nil {
					return err
				}
				accountID, _ := e.connector.AccountID()
				account, err = signer.AccountIDToAddress(accountID)
				if err != nil {
					return fmt.Errorf("could not derive address for %s: %w", accountID, err)
				}
			}

			info, err := e.gateway.MemberInfo(ctx, id, account)
			if err != nil {
				return fmt.Errorf("failed to fetch member info: %w", err)
			}

			if jsonWanted(c) {
				return writeJSON(c, info)
			}
			fmt.Printf("Member %s in group %d\n", info.Account.Hex(), id)
			fmt.Printf("  Queue position:     %d\n", info.QueuePosition)
			fmt.Printf("  Guarantor position: %d\n", info.GuarantorPosition)
			fmt.Printf("  Reputation:         %d\n", info.Reputation)
			fmt.Printf("  Locked collateral:  %s\n", info.LockedCollateral)
			fmt.Printf("  Paid this cycle:    %t\n", info.PaidThisCycle)
			fmt.Printf("  Received payout:    %t\n", info.ReceivedPayout)
			return nil
		},
	}
}

func groupInitPhaseCommand() *cli.Command {
	return &cli.Command{
		Name:      "init-phase",
		Usage:     "Advance a group's initialization (phases 2, 3, 4 in order)",
		ArgsUsage: "GROUP_ID PHASE",
		Action: func(c *cli.Context) error {
			id, err := groupIDArg(c)
			if err != nil {
				return err
			}
			if c.NArg() < 2 {
				return fmt.Errorf("phase is required (2, 3, or 4)")
			}
			phase, err := strconv.Atoi(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid phase %q: %w", c.Args().Get(1), err)
			}

			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.ensurePaired(ctx); err != nil {
				return err
			}
			if err := e.gateway.InitPhase(ctx, id, phase); err != nil {
				return fmt.Errorf("failed to run phase %d for group %d: %w", phase, id, err)
			}

			if jsonWanted(c) {
				return writeJSON(c, map[string]interface{}{"group_id": id, "phase": phase})
			}
			fmt.Printf("✓ Phase %d complete for group %d\n", phase, id)
			return nil
		},
	}
}

func groupFinalizeCommand() *cli.Command {
	return groupLifecycleCommand("finalize", "Finalize a group's initialization",
		func(ctx context.Context, e *env, id uint64) error {
			return e.gateway.FinalizeGroup(ctx, id)
		})
}

func groupDeactivateCommand() *cli.Command {
	return groupLifecycleCommand("deactivate", "Deactivate a group",
		func(ctx context.Context, e *env, id uint64) error {
			return e.gateway.DeactivateGroup(ctx, id)
		})
}

func groupLifecycleCommand(name, usage string, run func(context.Context, *env, uint64) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "GROUP_ID",
		Action: func(c *cli.Context) error {
			id, err := groupIDArg(c)
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.ensurePaired(ctx); err != nil {
				return err
			}
			if err := run(ctx, e, id); err != nil {
				return fmt.Errorf("failed to %s group %d: %w", name, id, err)
			}

			if jsonWanted(c) {
				return writeJSON(c, map[string]interface{}{"group_id": id, "status": name + "d"})
			}
			fmt.Printf("✓ Group %d %sd\n", id, name)
			return nil
		},
	}
}
