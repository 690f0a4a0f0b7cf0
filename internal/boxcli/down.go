package boxcli

import (
	"github.com/urfave/cli/v2"

	"github.com/warpbox/warpbox/internal/lib"
)

// DownCommand tears the container down and cleans up every host-visible
// trace: processes, overlay, networking, namespace mounts.
var DownCommand = &cli.Command{
	Name:   "down",
	Usage:  "stop the VPN client and clean up the container",
	Action: down,
}

func down(c *cli.Context) error {
	if err := ensureRoot(); err != nil {
		return err
	}
	cfg, err := GetConfigFromContext(c)
	if err != nil {
		return err
	}
	return lib.New(cfg).Down()
}
