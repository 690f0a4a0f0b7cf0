package netmgr

import (
	"errors"
	"fmt"
	"os"

	"github.com/vishvananda/netlink"
)

// LinkOps is the narrow netlink surface the manager needs, substitutable
// in tests.
type LinkOps interface {
	// LinkExists reports whether a link with the given name exists in the
	// current network namespace.
	LinkExists(name string) (bool, error)

	// CreateVethPair creates a veth pair with the named endpoint kept in
	// the current namespace and the peer moved into the network namespace
	// pinned at nsPath.
	CreateVethPair(name, peerName, nsPath string) error

	// AddrAdd assigns a CIDR address to the named link.
	AddrAdd(name, cidr string) error

	// LinkSetUp brings the named link up.
	LinkSetUp(name string) error

	// LinkDel deletes the named link.
	LinkDel(name string) error
}

type netlinkOps struct{}

func (netlinkOps) LinkExists(name string) (bool, error) {
	if _, err := netlink.LinkByName(name); err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up link %s: %w", name, err)
	}
	return true, nil
}

func (netlinkOps) CreateVethPair(name, peerName, nsPath string) error {
	nsFile, err := os.Open(nsPath)
	if err != nil {
		return fmt.Errorf("opening pinned network namespace: %w", err)
	}
	defer nsFile.Close()

	veth := &netlink.Veth{
		LinkAttrs:     netlink.LinkAttrs{Name: name},
		PeerName:      peerName,
		PeerNamespace: netlink.NsFd(nsFile.Fd()),
	}
	return netlink.LinkAdd(veth)
}

func (netlinkOps) AddrAdd(name, cidr string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("looking up link %s: %w", name, err)
	}
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return fmt.Errorf("parsing address %s: %w", cidr, err)
	}
	return netlink.AddrAdd(link, addr)
}

func (netlinkOps) LinkSetUp(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("looking up link %s: %w", name, err)
	}
	return netlink.LinkSetUp(link)
}

func (netlinkOps) LinkDel(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("looking up link %s: %w", name, err)
	}
	return netlink.LinkDel(link)
}
