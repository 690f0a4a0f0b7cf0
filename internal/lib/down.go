package lib

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/warpbox/warpbox/internal/nsmgr"
)

// Down drives the destruction workflow: terminate the supervised
// processes, dismantle the overlay and networking, release the pinned
// namespaces and the base directory bind mount. Every cleanup step is
// best-effort so that an earlier failure never blocks later cleanup; the
// two exceptions that abort loudly are a host veth endpoint that exists
// but cannot be deleted (a visible host-state leak) and a namespace file
// that cannot be unmounted.
func (w *Workflow) Down() error {
	w.terminate(w.cfg.VPNName())
	w.terminate(w.cfg.ProxyName())
	w.terminate(w.cfg.ProxyWorkerName)

	mntMounted, err := w.ns.IsMounted(nsmgr.MNTNS)
	if err != nil {
		return err
	}
	if mntMounted {
		// Both may already be unmounted or absent.
		if _, err := w.ns.RunInNamespace(nsmgr.MNTNS, "umount", "/proc"); err != nil {
			logrus.Debugf("Unmounting /proc in mount namespace: %v", err)
		}
		if _, err := w.ns.RunInNamespace(nsmgr.MNTNS, "umount", "/etc"); err != nil {
			logrus.Debugf("Unmounting /etc in mount namespace: %v", err)
		}
	}

	w.net.CleanupNamespaceVeth()

	netMounted, err := w.ns.IsMounted(nsmgr.NETNS)
	if err != nil {
		return err
	}
	if netMounted {
		w.net.CleanupExternalNetworking()
	}

	if err := w.net.CleanupHostVeth(); err != nil {
		return err
	}

	if err := w.ns.UnmountAll(); err != nil {
		return err
	}

	if err := w.ns.UnmountBase(); err != nil {
		logrus.Debugf("Unmounting base directory: %v", err)
	}
	return nil
}

// terminate sends SIGTERM to the named process when one is found outside
// the host's root network namespace. Failures are logged and swallowed;
// the process may be gone already.
func (w *Workflow) terminate(name string) {
	p, err := w.ns.FindNamespacedProcess(name)
	if err != nil {
		logrus.Warnf("Looking for %q process: %v", name, err)
		return
	}
	if p == nil {
		return
	}
	logrus.Debugf("Killing running %q process with pid %d", name, p.PID)
	if err := unix.Kill(p.PID, unix.SIGTERM); err != nil {
		logrus.Warnf("Terminating %q process %d: %v", name, p.PID, err)
	}
}
