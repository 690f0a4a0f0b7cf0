package nsmgr

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/warpbox/warpbox/internal/errdefs"
)

// NSType is an abstraction about available namespace types.
type NSType string

const (
	USERNS NSType = "user"
	PIDNS  NSType = "pid"
	MNTNS  NSType = "mount"
	NETNS  NSType = "net"
)

// SupportedNamespaces returns the namespace types warpbox pins, in the
// order used for creation and teardown.
func SupportedNamespaces() []NSType {
	return []NSType{USERNS, PIDNS, MNTNS, NETNS}
}

// StatusKind classifies the derived state of the persistent namespace set.
type StatusKind int

const (
	// StatusNone means no namespace of the set is mounted.
	StatusNone StatusKind = iota
	// StatusPartial means some but not all namespaces are mounted.
	StatusPartial
	// StatusReady means all namespaces of the set are mounted.
	StatusReady
)

func (k StatusKind) String() string {
	switch k {
	case StatusNone:
		return "none"
	case StatusPartial:
		return "partial"
	case StatusReady:
		return "ready"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Status is the result of probing the mount state of all supported
// namespace types. It is always derived fresh from the mount table, never
// cached, so that external changes (a manual unmount, say) are observed.
type Status struct {
	Kind    StatusKind
	Mounted map[NSType]bool
}

func newStatus(mounted map[NSType]bool) Status {
	n := 0
	for _, ok := range mounted {
		if ok {
			n++
		}
	}
	kind := StatusPartial
	switch n {
	case 0:
		kind = StatusNone
	case len(SupportedNamespaces()):
		kind = StatusReady
	}
	return Status{Kind: kind, Mounted: mounted}
}

// BaseDir resolves the persistent data directory for this tool following
// the platform data-directory convention.
func BaseDir() (string, error) {
	if xdg.DataHome == "" {
		return "", fmt.Errorf("%w: cannot resolve the data directory root", errdefs.ErrConfiguration)
	}
	return filepath.Join(xdg.DataHome, "warpbox"), nil
}
