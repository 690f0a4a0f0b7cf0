// Package netmgr wires the persistent network namespace to the host: a
// point-to-point veth pair, NAT out of the host's default interface, and a
// default route inside the namespace.
package netmgr

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warpbox/warpbox/internal/config"
	"github.com/warpbox/warpbox/internal/nsmgr"
)

// Manager performs the host- and namespace-side networking setup and
// teardown.
type Manager struct {
	cfg   *config.Config
	ns    *nsmgr.Manager
	links LinkOps
}

// New creates a Manager operating on the real netlink socket.
func New(cfg *config.Config, ns *nsmgr.Manager) *Manager {
	return NewWithLinkOps(cfg, ns, netlinkOps{})
}

// NewWithLinkOps creates a Manager with a custom link surface.
func NewWithLinkOps(cfg *config.Config, ns *nsmgr.Manager, links LinkOps) *Manager {
	return &Manager{cfg: cfg, ns: ns, links: links}
}

// SetupPrivateNetworking creates the veth pair between the host and the
// network namespace and assigns the fixed point-to-point addresses.
// Idempotent: when the host-side endpoint already exists nothing is done.
func (m *Manager) SetupPrivateNetworking() error {
	exists, err := m.links.LinkExists(m.cfg.HostVethName)
	if err != nil {
		return err
	}
	if exists {
		logrus.Debugf("%s iface seems to already exist, not re-creating it", m.cfg.HostVethName)
		return nil
	}

	logrus.Debug("Setting up veth pair for private networking")
	netNSPath := m.ns.MountPoint(nsmgr.NETNS)
	if err := m.links.CreateVethPair(m.cfg.HostVethName, m.cfg.NamespaceVethName, netNSPath); err != nil {
		return fmt.Errorf("creating veth pair: %w", err)
	}
	if err := m.links.AddrAdd(m.cfg.HostVethName, m.cfg.HostVethAddr); err != nil {
		return fmt.Errorf("assigning host veth address: %w", err)
	}
	if err := m.links.LinkSetUp(m.cfg.HostVethName); err != nil {
		return fmt.Errorf("bringing host veth up: %w", err)
	}

	if _, err := m.ns.RunInNamespace(nsmgr.NETNS,
		"ip", "addr", "add", m.cfg.NamespaceVethAddr, "dev", m.cfg.NamespaceVethName); err != nil {
		return err
	}
	if _, err := m.ns.RunInNamespace(nsmgr.NETNS,
		"ip", "link", "set", m.cfg.NamespaceVethName, "up"); err != nil {
		return err
	}
	return nil
}

// SetupExternalNetworking installs NAT and forwarding towards the host's
// default interface. Idempotent: a namespace that already has a default
// route is assumed to be externally managed and left alone.
func (m *Manager) SetupExternalNetworking() error {
	hasRoute, err := m.ContainerHasDefaultRoute()
	if err != nil {
		return err
	}
	if hasRoute {
		logrus.Debug("Container appears to already have default route, keeping external networking as-is")
		return nil
	}

	iface, err := m.DefaultRouteIfaceName()
	if err != nil {
		return err
	}
	return m.SetupExternalForward(iface)
}

// SetupExternalForward unconditionally appends the NAT and forward rules
// for iface and adds the namespace's default route through the private
// veth. Callers gate it with ContainerHasDefaultRoute to avoid duplicate
// rules.
func (m *Manager) SetupExternalForward(iface string) error {
	logrus.Debugf("Setting up external forward for interface %s", iface)
	rules := [][]string{
		{"-t", "nat", "-A", "POSTROUTING", "-s", m.cfg.NATSubnet, "-o", iface, "-j", "MASQUERADE"},
		{"-A", "FORWARD", "-i", iface, "-o", m.cfg.HostVethName, "-j", "ACCEPT"},
		{"-A", "FORWARD", "-o", iface, "-i", m.cfg.HostVethName, "-j", "ACCEPT"},
	}
	for _, rule := range rules {
		if err := appendRule(rule); err != nil {
			return err
		}
	}

	_, err := m.ns.RunInNamespace(nsmgr.NETNS,
		"ip", "route", "add", "default", "via", m.cfg.GatewayAddr, "dev", m.cfg.NamespaceVethName)
	return err
}

// CleanupExternalNetworking removes the NAT and forward rules installed by
// SetupExternalForward. Rules are deleted by specification until the
// kernel reports no further match; recompute failures are logged and
// swallowed since teardown must keep going.
func (m *Manager) CleanupExternalNetworking() {
	iface, err := m.DefaultRouteIfaceName()
	if err != nil {
		logrus.Warnf("Cannot determine default route interface, skipping firewall rule cleanup: %v", err)
		return
	}
	deleteRule([]string{"POSTROUTING", "-t", "nat", "-s", m.cfg.TeardownNATSubnet, "-o", iface, "-j", "MASQUERADE"})
	deleteRule([]string{"FORWARD", "-i", iface, "-o", m.cfg.HostVethName, "-j", "ACCEPT"})
	deleteRule([]string{"FORWARD", "-o", iface, "-i", m.cfg.HostVethName, "-j", "ACCEPT"})
}

// CleanupNamespaceVeth removes the namespace-side veth endpoint,
// best-effort and tolerant of an endpoint that is already gone. The delete
// runs through the mount namespace.
func (m *Manager) CleanupNamespaceVeth() {
	netMounted, err := m.ns.IsMounted(nsmgr.NETNS)
	if err != nil {
		logrus.Warnf("Checking network namespace mount: %v", err)
		return
	}
	if !netMounted {
		return
	}
	if _, err := m.ns.RunInNamespace(nsmgr.MNTNS,
		"ip", "link", "delete", "dev", m.cfg.NamespaceVethName); err != nil {
		logrus.Debugf("Namespace veth endpoint removal: %v", err)
	}
}

// CleanupHostVeth removes the host-side veth endpoint. A host endpoint
// that exists but cannot be deleted is a visible host-state leak and is
// reported loudly rather than swallowed.
func (m *Manager) CleanupHostVeth() error {
	exists, err := m.links.LinkExists(m.cfg.HostVethName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := m.links.LinkDel(m.cfg.HostVethName); err != nil {
		return fmt.Errorf("deleting private veth network interface %s: %w", m.cfg.HostVethName, err)
	}
	return nil
}
