// Command mailcow-companion manages a mailcow server's domains, mailboxes
// and aliases from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "mailcow-companion"
	app.Usage = "mailcow admin API companion"
	app.Description = `Lists the domains and mailboxes of a mailcow server and creates
aliases through its admin API.

The server URL and API key are kept in the OS keyring when one is
available, otherwise in a local SQLite file. Run without a subcommand to
start the terminal UI.
`
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Configuration file to use",
			EnvVars: []string{"MAILCOW_COMPANION_CONFIG"},
			Value:   defaultConfigPath(),
		},
		&cli.StringFlag{
			Name:  "storage",
			Usage: "Override the storage backend: auto, keyring or local",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = runUI
	app.Commands = []*cli.Command{
		{
			Name:   "ui",
			Usage:  "Start the terminal UI",
			Action: runUI,
		},
		{
			Name:   "domains",
			Usage:  "Print the server's domains, one per line",
			Action: listDomains,
		},
		{
			Name:   "mailboxes",
			Usage:  "Print the server's mailboxes, one per line",
			Action: listMailboxes,
		},
		{
			Name:  "alias",
			Usage: "Alias management",
			Subcommands: []*cli.Command{
				{
					Name:  "create",
					Usage: "Create an alias and print the server response",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "alias",
							Aliases:  []string{"a"},
							Usage:    "Local part of the new address",
							Required: true,
						},
						&cli.StringFlag{
							Name:     "domain",
							Aliases:  []string{"d"},
							Usage:    "Domain of the new address",
							Required: true,
						},
						&cli.StringFlag{
							Name:     "goto",
							Aliases:  []string{"g"},
							Usage:    "Destination `ADDRESS`",
							Required: true,
						},
					},
					Action: createAlias,
				},
			},
		},
		{
			Name:  "config",
			Usage: "Server settings management",
			Subcommands: []*cli.Command{
				{
					Name:  "init",
					Usage: "Write a configuration file with the default settings",
					Description: `Writes the defaults to the file named by --config. A --storage
override is recorded as storage.backend.`,
					Flags: []cli.Flag{
						&cli.BoolFlag{
							Name:    "force",
							Aliases: []string{"f"},
							Usage:   "Overwrite an existing file",
						},
					},
					Action: initConfig,
				},
				{
					Name:   "show",
					Usage:  "Print the stored server URL and whether an API key is set",
					Action: showConfig,
				},
				{
					Name:      "set-url",
					Usage:     "Store the server URL",
					ArgsUsage: "URL",
					Action:    setURL,
				},
				{
					Name:        "set-key",
					Usage:       "Store the API key",
					Description: "Prompts for the key with hidden input when KEY is omitted.",
					ArgsUsage:   "[KEY]",
					Action:      setKey,
				},
				{
					Name:  "clear",
					Usage: "Remove the stored server URL and API key",
					Flags: []cli.Flag{
						&cli.BoolFlag{
							Name:    "yes",
							Aliases: []string{"y"},
							Usage:   "Don't ask for confirmation",
						},
					},
					Action: clearConfig,
				},
			},
		},
	}
	return app
}
