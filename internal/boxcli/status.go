package boxcli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/warpbox/warpbox/internal/nsmgr"
)

// StatusCommand reports the derived state of the persistent namespace set.
var StatusCommand = &cli.Command{
	Name:   "status",
	Usage:  "show the mount state of the persistent namespaces",
	Action: status,
}

func status(c *cli.Context) error {
	if err := ensureRoot(); err != nil {
		return err
	}
	cfg, err := GetConfigFromContext(c)
	if err != nil {
		return err
	}

	mgr := nsmgr.New(cfg.BaseDir)
	st, err := mgr.Status()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "namespaces: %s\n", st.Kind)
	for _, kind := range nsmgr.SupportedNamespaces() {
		state := "not mounted"
		if st.Mounted[kind] {
			state = "mounted"
		}
		fmt.Fprintf(c.App.Writer, "  %-5s %s\n", kind, state)
	}
	return nil
}
