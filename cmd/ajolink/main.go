package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "ajolink",
		Usage: "Digital ajo wallet and contract connectivity CLI",
		Description: `A command-line tool for operating the ajo connectivity layer.

Use this CLI to pair a wallet, inspect the saved session, query the group
factory contract, and run connectivity diagnostics.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			walletCommands(),
			groupCommands(),
			balancesCommand(),
			diagCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter JSON output with a jq expression",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
