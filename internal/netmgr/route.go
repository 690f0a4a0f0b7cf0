package netmgr

import (
	"bytes"
	"strings"

	"github.com/warpbox/warpbox/internal/errdefs"
	"github.com/warpbox/warpbox/internal/nsmgr"
	"github.com/warpbox/warpbox/utils/cmdrunner"
)

// ParseDefaultRouteIface extracts the interface name from the single-line
// output of `ip route show default`.
func ParseDefaultRouteIface(output string) (string, error) {
	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) == 0 {
		return "", errdefs.Parsef("empty output when querying the default route")
	}
	if parts[0] != "default" {
		return "", errdefs.Parsef("default route query output does not start with %q: %q", "default", output)
	}
	for i, part := range parts {
		if part == "dev" && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	return "", errdefs.Parsef("no %q field in default route query output: %q", "dev", output)
}

// DefaultRouteIfaceName queries the host's default route and returns the
// interface it leaves through.
func (m *Manager) DefaultRouteIfaceName() (string, error) {
	stdout, stderr, err := cmdrunner.Run("ip", "route", "show", "default")
	if err != nil {
		return "", errdefs.WrapExec([]string{"ip", "route", "show", "default"}, stdout, stderr, err)
	}
	return ParseDefaultRouteIface(string(stdout))
}

// ContainerHasDefaultRoute reports whether the network namespace already
// has any default route configured.
func (m *Manager) ContainerHasDefaultRoute() (bool, error) {
	out, err := m.ns.RunInNamespace(nsmgr.NETNS, "ip", "route", "show", "default")
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}
