package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errColor.Sprint(err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "entryd"
	app.Usage = "BLE entry controller"
	app.Version = "0.3.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to the YAML config file",
			EnvVar: "ENTRY_CONFIG",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override the configured log level",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "keep the actuator connected and validate tokens read from stdin",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen", Usage: "address of the status endpoint, overrides http.listen"},
			},
			Action: cmdRun,
		},
		{
			Name:   "enroll",
			Usage:  "add the holders of tokens read from stdin to the roster",
			Action: cmdEnroll,
		},
		{
			Name:   "pair",
			Usage:  "forget the paired actuator and pair with the first one found",
			Action: cmdPair,
		},
		{
			Name:        "disconnect",
			Usage:       "forget the paired actuator",
			Description: disconnectHelp,
			Action:      cmdDisconnect,
		},
		{
			Name:   "unlock",
			Usage:  "pulse the lock once",
			Action: cmdUnlock,
		},
		{
			Name:  "members",
			Usage: "manage the roster",
			Subcommands: []cli.Command{
				{
					Name:      "add",
					Usage:     "grant entry",
					ArgsUsage: "<id> <name> [company id]",
					Action:    cmdMembersAdd,
				},
				{
					Name:      "revoke",
					Usage:     "revoke entry",
					ArgsUsage: "<id>",
					Action:    cmdMembersRevoke,
				},
				{
					Name:   "list",
					Usage:  "list members",
					Action: cmdMembersList,
				},
			},
		},
		{
			Name:  "logs",
			Usage: "show the entry log, newest first",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit, n", Value: 20, Usage: "number of records, 0 for all"},
			},
			Action: cmdLogs,
		},
		{
			Name:  "set",
			Usage: "change room settings",
			Subcommands: []cli.Command{
				{
					Name:      "company",
					ArgsUsage: "<company id>",
					Action:    cmdSetCompany,
				},
				{
					Name:      "room",
					ArgsUsage: "<room name>",
					Action:    cmdSetRoom,
				},
				{
					Name:      "guest",
					ArgsUsage: "<true|false>",
					Action:    cmdSetGuest,
				},
			},
		},
		{
			Name:   "status",
			Usage:  "show room settings and pairing",
			Action: cmdStatus,
		},
		{
			Name:   "keygen",
			Usage:  "generate the store identity",
			Action: cmdKeygen,
		},
	}

	return app
}
