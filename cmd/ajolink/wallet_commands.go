package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"

	"github.com/ajohq/ajolink/service/wallet"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet pairing and session commands",
		Subcommands: []*cli.Command{
			walletConnectCommand(),
			walletDisconnectCommand(),
			walletSessionCommand(),
		},
	}
}

func walletConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Pair a wallet, printing the pairing URI and an optional QR code",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Value:   "0.0.1001",
				Usage:   "Account the loopback agent pairs as (development only)",
			},
			&cli.StringFlag{
				Name:  "qr-out",
				Usage: "Write the pairing QR code as PNG to this path",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Value: 2 * time.Minute,
				Usage: "How long to wait for the wallet to approve the pairing",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("wait"))
			defer cancel()

			e, err := setup(ctx, c.String("account"))
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.connector.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize wallet connector: %w", err)
			}

			qrOut := c.String("qr-out")
			res, err := e.connector.Connect(ctx, func(info wallet.PairingInfo) {
				fmt.Printf("Scan to pair: %s\n", info.URI)
				if qr, qerr := qrcode.New(info.URI, qrcode.Medium); qerr == nil {
					fmt.Print(qr.ToSmallString(false))
				}
				if qrOut != "" {
					if qerr := qrcode.WriteFile(info.URI, qrcode.Medium, 256, qrOut); qerr != nil {
						e.logger.Warn("could not write QR code", "path", qrOut, "error", qerr)
					} else {
						fmt.Printf("QR code written to %s\n", qrOut)
					}
				}
			})
			if errors.Is(err, wallet.ErrExtensionNotFound) {
				fmt.Printf("No wallet extension detected. Install one: %s\n", res.InstallLink)
				return err
			}
			if err != nil {
				return fmt.Errorf("failed to connect wallet: %w", err)
			}

			if jsonWanted(c) {
				return writeJSON(c, map[string]interface{}{
					"already_paired": res.AlreadyPaired,
					"account_id":     res.Session.AccountID,
					"network":        res.Session.Network,
				})
			}
			if res.AlreadyPaired {
				fmt.Printf("✓ Already paired\n")
			} else {
				fmt.Printf("✓ Wallet paired successfully\n")
			}
			fmt.Printf("  Account: %s\n", res.Session.AccountID)
			fmt.Printf("  Network: %s\n", res.Session.Network)
			return nil
		},
	}
}

func walletDisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Tear down the wallet pairing and clear the saved session",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.connector.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize wallet connector: %w", err)
			}
			if err := e.connector.Disconnect(ctx); err != nil {
				return fmt.Errorf("disconnect completed with errors: %w", err)
			}
			e.member.Clear(ctx)
			e.details.Clear()
			e.balances.Clear()

			if jsonWanted(c) {
				return writeJSON(c, map[string]string{"status": "disconnected"})
			}
			fmt.Println("✓ Wallet disconnected")
			return nil
		},
	}
}

func walletSessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Show the saved wallet session",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			sess, err := e.store.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}
			if sess == nil {
				if jsonWanted(c) {
					return writeJSON(c, map[string]interface{}{"session": nil})
				}
				fmt.Println("No saved session")
				return nil
			}

			if jsonWanted(c) {
				return writeJSON(c, sess)
			}
			fmt.Printf("Account:  %s\n", sess.AccountID)
			fmt.Printf("Network:  %s\n", sess.Network)
			fmt.Printf("Topic:    %s\n", sess.PairingTopic)
			if sess.PeerName != "" {
				fmt.Printf("Peer:     %s\n", sess.PeerName)
			}
			fmt.Printf("Paired:   %s\n", sess.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}
