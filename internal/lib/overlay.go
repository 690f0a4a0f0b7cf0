package lib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warpbox/warpbox/internal/nsmgr"
)

// createEtcOverlay mounts a writable overlay over /etc inside the mount
// namespace, with an extra lower layer carrying the synthetic resolver and
// proxy configuration. Idempotent: an overlay already reported on /etc is
// left untouched.
//
// The mount is performed through the all-namespaces join primitive rather
// than plain mount-namespace entry: the mounting process has to be inside
// the mount namespace and able to observe the resulting mount for the
// subsequent checks.
func (w *Workflow) createEtcOverlay() error {
	mounted, err := w.etcOverlayMounted()
	if err != nil {
		return err
	}
	if mounted {
		logrus.Debug("Overlay already mounted at /etc, not re-creating it")
		return nil
	}

	extraLower := filepath.Join(w.cfg.OverlayDir(), "extra_lower")
	upper := filepath.Join(w.cfg.OverlayDir(), "upper")
	work := filepath.Join(w.cfg.OverlayDir(), "work")
	for _, dir := range []string{extraLower, upper, work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating overlay directory: %w", err)
		}
	}

	if err := writeOverlayFile(extraLower, "resolv.conf", w.resolvConf()); err != nil {
		return err
	}
	if err := writeOverlayFile(extraLower, "danted.conf", w.dantedConf()); err != nil {
		return err
	}

	opts := fmt.Sprintf("lowerdir=%s:/etc,upperdir=%s,workdir=%s", extraLower, upper, work)
	logrus.Debugf("Mounting /etc overlay with options %s", opts)
	if _, err := w.ns.RunInAllNamespaces("mount", "-t", "overlay", "overlay", "-o", opts, "/etc"); err != nil {
		return fmt.Errorf("mounting /etc overlay: %w", err)
	}
	return nil
}

// etcOverlayMounted queries the mount table inside the mount namespace for
// an overlay on /etc.
func (w *Workflow) etcOverlayMounted() (bool, error) {
	out, err := w.ns.RunInNamespace(nsmgr.MNTNS, "mount")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "overlay on /etc type overlay") {
			return true, nil
		}
	}
	return false, nil
}

// writeOverlayFile places one opaque configuration blob into the overlay's
// extra lower layer.
func writeOverlayFile(dir, name string, content []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		return fmt.Errorf("writing overlay file %s: %w", name, err)
	}
	return nil
}

// resolvConf points the namespace's resolver at the VPN client's local
// nameservers.
func (w *Workflow) resolvConf() []byte {
	var b strings.Builder
	for _, ns := range w.cfg.Nameservers {
		fmt.Fprintf(&b, "nameserver %s\n", ns)
	}
	return []byte(b.String())
}

// dantedConf binds the SOCKS proxy to the namespace veth address and
// permits all source and destination traffic; everything it relays leaves
// through the VPN tunnel anyway.
func (w *Workflow) dantedConf() []byte {
	return []byte(fmt.Sprintf(`logoutput: stderr
internal: %[1]s port = %[2]d
external: %[1]s
clientmethod: none
socksmethod: none
client pass {
	from: 0.0.0.0/0 to: 0.0.0.0/0
}
socks pass {
	from: 0.0.0.0/0 to: 0.0.0.0/0
}
`, w.cfg.ProxyListenAddr, w.cfg.ProxyListenPort))
}
