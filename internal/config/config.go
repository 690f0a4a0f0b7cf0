// Package config holds the tool configuration. All fixed network and
// process literals live here so that the orchestration code never carries
// magic values; the defaults match what the external VPN client and SOCKS
// proxy binaries expect and should not be changed casually.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/warpbox/warpbox/internal/nsmgr"
)

// Config is the aggregate configuration, overridable from a TOML file.
type Config struct {
	// BaseDir is the persistent directory holding the namespace mount
	// point files and the /etc overlay working directories.
	BaseDir string `toml:"base_dir"`

	// HostVethName and NamespaceVethName are the two endpoints of the
	// private veth pair.
	HostVethName      string `toml:"host_veth_name"`
	NamespaceVethName string `toml:"namespace_veth_name"`

	// HostVethAddr and NamespaceVethAddr are the fixed point-to-point
	// addresses in CIDR notation.
	HostVethAddr      string `toml:"host_veth_addr"`
	NamespaceVethAddr string `toml:"namespace_veth_addr"`

	// GatewayAddr is the address the namespace routes its default
	// traffic through (the host endpoint, without prefix).
	GatewayAddr string `toml:"gateway_addr"`

	// NATSubnet is the source subnet masqueraded out of the host default
	// interface when forwarding is installed. TeardownNATSubnet is the
	// subnet literal used when the rule is deleted again. The two differ
	// on purpose; see the teardown code before unifying them.
	NATSubnet         string `toml:"nat_subnet"`
	TeardownNATSubnet string `toml:"teardown_nat_subnet"`

	// VPNCommand and ProxyCommand are the argv vectors of the two
	// supervised processes. The first element doubles as the name used
	// for duplicate detection and termination.
	VPNCommand   []string `toml:"vpn_command"`
	ProxyCommand []string `toml:"proxy_command"`

	// ProxyWorkerName matches the proxy's worker children by argv[0] so
	// teardown can terminate them as well.
	ProxyWorkerName string `toml:"proxy_worker_name"`

	// Nameservers are written into the overlay's resolv.conf. They point
	// at the VPN client's local resolver.
	Nameservers []string `toml:"nameservers"`

	// ProxyListenAddr and ProxyListenPort are written into the overlay's
	// proxy configuration.
	ProxyListenAddr string `toml:"proxy_listen_addr"`
	ProxyListenPort int    `toml:"proxy_listen_port"`
}

// Default returns the stock configuration. The base directory is left for
// ResolveBaseDir so that configuration file overrides win without touching
// the platform data-directory convention.
func Default() *Config {
	return &Config{
		HostVethName:      "veth-warp",
		NamespaceVethName: "veth-warp-ns",
		HostVethAddr:      "10.200.0.1/24",
		NamespaceVethAddr: "10.200.0.2/24",
		GatewayAddr:       "10.200.0.1",
		NATSubnet:         "10.200.0.2/24",
		TeardownNATSubnet: "10.200.0.0/24",
		VPNCommand:        []string{"warp-svc"},
		ProxyCommand:      []string{"danted", "-f", "/etc/danted.conf"},
		ProxyWorkerName:   "danted: io-chil",
		Nameservers: []string{
			"127.0.2.2",
			"127.0.2.3",
			"fd01:db8:1111::2",
			"fd01:db8:1111::3",
		},
		ProxyListenAddr: "10.200.0.2",
		ProxyListenPort: 8080,
	}
}

// UpdateFromFile overlays values from a TOML file onto c. Unset keys keep
// their current values.
func (c *Config) UpdateFromFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}
	if len(meta.Undecoded()) > 0 {
		return fmt.Errorf("unknown keys in config %s: %v", path, meta.Undecoded())
	}
	return nil
}

// ResolveBaseDir fills in BaseDir from the platform data-directory
// convention when no override was configured.
func (c *Config) ResolveBaseDir() error {
	if c.BaseDir != "" {
		return nil
	}
	dir, err := nsmgr.BaseDir()
	if err != nil {
		return err
	}
	c.BaseDir = dir
	return nil
}

// VPNName returns the process name used to detect a running VPN client.
func (c *Config) VPNName() string { return c.VPNCommand[0] }

// ProxyName returns the process name used to detect a running proxy.
func (c *Config) ProxyName() string { return c.ProxyCommand[0] }

// OverlayDir returns the parent of the three overlay working directories.
func (c *Config) OverlayDir() string {
	return filepath.Join(c.BaseDir, "etc_overlay")
}
