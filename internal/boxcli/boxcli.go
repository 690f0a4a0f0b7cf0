// Package boxcli defines the warpbox subcommands. The CLI layer verifies
// effective privilege and hands over to the construction and destruction
// workflows.
package boxcli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/warpbox/warpbox/internal/config"
	"github.com/warpbox/warpbox/internal/errdefs"
)

// DefaultCommands are the subcommands registered on the warpbox app.
var DefaultCommands = []*cli.Command{
	UpCommand,
	DownCommand,
	StatusCommand,
}

// GetConfigFromContext assembles the effective configuration: defaults,
// optional TOML overrides, and the resolved base directory.
func GetConfigFromContext(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		if err := cfg.UpdateFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ResolveBaseDir(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ensureRoot verifies the process runs with effective root privileges.
// A setuid-root binary started by an unprivileged user is elevated to a
// real uid of 0 so that every helper invocation inherits full privilege.
func ensureRoot() error {
	if unix.Geteuid() != 0 {
		return errdefs.ErrNotRoot
	}
	if unix.Getuid() != 0 {
		logrus.Info("Running as setuid root. Strange, but continuing happily.")
		if err := unix.Setuid(0); err != nil {
			return fmt.Errorf("setuid(0) failed although euid is 0: %w", err)
		}
	}
	return nil
}
