package boxcli

import (
	"github.com/urfave/cli/v2"

	"github.com/warpbox/warpbox/internal/lib"
)

// UpCommand brings the container up: persistent namespaces, /etc overlay,
// private networking, VPN client and SOCKS proxy.
var UpCommand = &cli.Command{
	Name:   "up",
	Usage:  "start the VPN client and SOCKS proxy in the container",
	Action: up,
}

func up(c *cli.Context) error {
	if err := ensureRoot(); err != nil {
		return err
	}
	cfg, err := GetConfigFromContext(c)
	if err != nil {
		return err
	}
	return lib.New(cfg).Up()
}
