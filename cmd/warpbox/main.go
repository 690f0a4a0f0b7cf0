package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/warpbox/warpbox/internal/boxcli"
	"github.com/warpbox/warpbox/internal/version"
)

const logLevelEnv = "WARPBOX_LOG"

func main() {
	app := cli.NewApp()
	app.Name = "warpbox"
	app.Usage = "run a VPN client and SOCKS proxy inside a persistent private namespace set"
	app.Description = app.Usage
	app.Version = version.Version

	app.CommandNotFound = func(*cli.Context, string) { os.Exit(1) }
	app.OnUsageError = func(c *cli.Context, e error, b bool) error { return e }
	app.Action = func(c *cli.Context) error {
		return fmt.Errorf("expecting a valid subcommand")
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Aliases:   []string{"c"},
			Usage:     "path to a TOML configuration file",
			TakesFile: true,
		},
	}
	app.Commands = boxcli.DefaultCommands

	app.Before = func(c *cli.Context) error {
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000000000Z07:00",
			FullTimestamp:   true,
		})
		if lvl := os.Getenv(logLevelEnv); lvl != "" {
			level, err := logrus.ParseLevel(lvl)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", logLevelEnv, err)
			}
			logrus.SetLevel(level)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
