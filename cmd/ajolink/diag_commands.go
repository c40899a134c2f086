package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ajohq/ajolink/service/diag"
	"github.com/ajohq/ajolink/service/wallet"
)

func diagCommand() *cli.Command {
	return &cli.Command{
		Name:  "diag",
		Usage: "Run connectivity diagnostics",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			e, err := setup(ctx, "")
			if err != nil {
				return err
			}
			defer e.close()

			// Initialization failure is itself a diagnostic result.
			if err := e.connector.Initialize(ctx); err != nil {
				e.logger.Warn("initialization failed", "error", err)
			}

			snap := e.connector.Snapshot()
			sess, _ := e.store.Load(ctx)

			reporter := diag.NewReporter(nil)
			reporter.Update(diag.Inputs{
				ExtensionDetected: snap.ExtensionDetected,
				Initialized:       snap.Initialized,
				Paired:            snap.State == wallet.StatePaired,
				SignerAvailable:   snap.SignerAvailable,
				Network:           e.cfg.Network,
				ReadHandleReady:   e.gateway.ReadReady(),
				WriteHandleReady:  e.gateway.WriteReady(),
				SessionPersisted:  sess != nil,
			})
			report := reporter.Report()

			if jsonWanted(c) {
				return writeJSON(c, report)
			}
			for _, check := range report.Checks {
				mark := "✓"
				if !check.OK {
					mark = "✗"
				}
				fmt.Printf("%s %s\n", mark, check.Name)
				if check.Detail != "" {
					fmt.Printf("    %s\n", check.Detail)
				}
			}
			if report.Healthy {
				fmt.Println("\nAll checks passed")
				return nil
			}
			return fmt.Errorf("diagnostics found problems")
		},
	}
}
