// Package lib implements the construction and destruction workflows over
// the persistent namespace set: bring the containerized VPN environment up
// or tear it down again.
package lib

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warpbox/warpbox/internal/config"
	"github.com/warpbox/warpbox/internal/errdefs"
	"github.com/warpbox/warpbox/internal/netmgr"
	"github.com/warpbox/warpbox/internal/nsmgr"
)

// settleTimeout bounds the wait for the VPN client to become visible
// inside the namespace set before the SOCKS proxy is started.
const settleTimeout = 5 * time.Second

// Workflow bundles the managers the up and down state machines drive.
type Workflow struct {
	cfg *config.Config
	ns  *nsmgr.Manager
	net *netmgr.Manager
}

// New creates a Workflow operating on the real host.
func New(cfg *config.Config) *Workflow {
	ns := nsmgr.New(cfg.BaseDir)
	return &Workflow{cfg: cfg, ns: ns, net: netmgr.New(cfg, ns)}
}

// NewWithManagers creates a Workflow with custom managers for testing.
func NewWithManagers(cfg *config.Config, ns *nsmgr.Manager, net *netmgr.Manager) *Workflow {
	return &Workflow{cfg: cfg, ns: ns, net: net}
}

// Up drives the construction state machine: isolate the base directory,
// ensure the namespace set exists, mount the /etc overlay, wire up
// networking and start the supervised processes. Safe to invoke again
// after a successful run; it then verifies instead of recreating.
func (w *Workflow) Up() error {
	if err := os.MkdirAll(w.cfg.BaseDir, 0o755); err != nil {
		return fmt.Errorf("creating base directory: %w", err)
	}

	bound, err := w.ns.HasSelfBindMount()
	if err != nil {
		return err
	}
	if bound {
		logrus.Warn("Persistent namespace base directory is still bind-mounted, continuing...")
	} else if err := w.ns.SelfBindMount(); err != nil {
		return err
	}

	status, err := w.ns.Status()
	if err != nil {
		return err
	}
	switch status.Kind {
	case nsmgr.StatusReady:
		logrus.Info("Namespaces already mounted")
		init, err := w.ns.InitProcess()
		if err != nil {
			return err
		}
		if init == nil {
			return fmt.Errorf("%w: namespaces are mounted but their init process is gone", errdefs.ErrDesync)
		}
	case nsmgr.StatusPartial:
		return fmt.Errorf("%w: namespaces are only partially mounted (%v)", errdefs.ErrDesync, mountedKinds(status))
	case nsmgr.StatusNone:
		if _, err := w.ns.CreateNamespaces(); err != nil {
			return err
		}
	}

	if err := w.createEtcOverlay(); err != nil {
		return err
	}

	if err := w.net.SetupPrivateNetworking(); err != nil {
		return err
	}
	if err := w.net.SetupExternalNetworking(); err != nil {
		return err
	}

	if err := w.spawnIfAbsent(w.cfg.VPNCommand); err != nil {
		return err
	}

	// The proxy binds the namespace veth address, which only works once
	// the VPN client is up and serving.
	err = nsmgr.PollUntil(nsmgr.PollInterval, settleTimeout, "VPN client inside the namespace set", func() (bool, error) {
		p, err := w.ns.FindNamespacedProcess(w.cfg.VPNName())
		return p != nil, err
	})
	if err != nil {
		return err
	}

	return w.spawnIfAbsent(w.cfg.ProxyCommand)
}

// spawnIfAbsent starts argv inside all namespaces unless a process with a
// matching name already runs anywhere on the host. Matching all host
// processes rather than only namespaced ones errs on the side of not
// spawning duplicates.
func (w *Workflow) spawnIfAbsent(argv []string) error {
	name := argv[0]
	existing, err := w.ns.FindHostProcess(name)
	if err != nil {
		return err
	}
	if existing != nil {
		logrus.Debugf("Process %q already running with pid %d, not spawning it", name, existing.PID)
		return nil
	}
	_, err = w.ns.SpawnInAllNamespaces(argv...)
	return err
}

func mountedKinds(status nsmgr.Status) []nsmgr.NSType {
	kinds := make([]nsmgr.NSType, 0, len(status.Mounted))
	for _, kind := range nsmgr.SupportedNamespaces() {
		if status.Mounted[kind] {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
