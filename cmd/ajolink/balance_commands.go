package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ajohq/ajolink/service/cache"
)

// Display unit scales. HBAR uses 8 decimals (tinybar), USDC uses 6.
const (
	tinybarPerHBAR = 100_000_000
	usdcUnitScale  = 1_000_000
)

func balancesCommand() *cli.Command {
	return &cli.Command{
		Name:  "balances",
		Usage: "Show the paired account's token balances with a naira estimate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "account",
				Usage: "Account to query (defaults to the paired account)",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			accountID := c.String("account")
			if accountID == "" {
				if err := e.ensurePaired(ctx); err != nil {
					return err
				}
				accountID, _ = e.connector.AccountID()
			}

			bal, err := e.mirror.Balance(ctx, accountID)
			if err != nil {
				return fmt.Errorf("failed to fetch balances: %w", err)
			}

			// Rate failures degrade the naira estimate, not the balances.
			var nairaPerHBAR float64
			if rate, err := e.mirror.Rate(ctx); err != nil {
				e.logger.Warn("could not fetch exchange rate", "error", err)
			} else {
				nairaPerHBAR = rate.USDPerHBAR * e.cfg.NairaPerUSD
			}

			e.balances.Set(cache.TokenBalances{
				WHBARTinybar: bal.Tinybar,
				USDCUnits:    bal.Tokens[e.cfg.USDCTokenID],
				NairaPerHBAR: nairaPerHBAR,
			})

			hbar := float64(bal.Tinybar) / tinybarPerHBAR
			usdc := float64(bal.Tokens[e.cfg.USDCTokenID]) / usdcUnitScale

			if jsonWanted(c) {
				return writeJSON(c, map[string]interface{}{
					"account_id":     accountID,
					"hbar":           hbar,
					"usdc":           usdc,
					"naira_per_hbar": nairaPerHBAR,
					"naira_estimate": hbar * nairaPerHBAR,
				})
			}
			fmt.Printf("Balances for %s\n", accountID)
			fmt.Printf("  HBAR: %.8f\n", hbar)
			fmt.Printf("  USDC: %.6f\n", usdc)
			if nairaPerHBAR > 0 {
				fmt.Printf("  ≈ ₦%.2f (at ₦%.2f/HBAR)\n", hbar*nairaPerHBAR, nairaPerHBAR)
			}
			return nil
		},
	}
}
