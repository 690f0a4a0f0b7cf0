// Package nsmgr manages warpbox's persistent namespace set: four
// namespaces (user, pid, mount, net) kept alive beyond their originating
// process as nsfs bind mounts under a base directory.
package nsmgr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Manager owns the namespace mount points under its base directory and is
// the only component touching raw namespace files.
type Manager struct {
	baseDir string
	host    Host
}

// New creates a Manager reading the real kernel state.
func New(baseDir string) *Manager {
	return NewWithHost(baseDir, procfsHost{})
}

// NewWithHost creates a Manager with a custom host state reader.
func NewWithHost(baseDir string, host Host) *Manager {
	return &Manager{baseDir: baseDir, host: host}
}

// BaseDir returns the directory holding the namespace mount points.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// MountPoint returns the pinning file path for a namespace type.
func (m *Manager) MountPoint(kind NSType) string {
	return filepath.Join(m.baseDir, string(kind))
}

// IsMounted reports whether the given namespace type is currently pinned:
// the mount point file exists and the live mount table has an nsfs entry
// targeting it. A mount point file that cannot be statted counts as not
// mounted, like a dangling mount entry; only mount table read failures are
// errors.
func (m *Manager) IsMounted(kind NSType) (bool, error) {
	mountPoint := m.MountPoint(kind)
	if _, err := os.Stat(mountPoint); err != nil {
		if !os.IsNotExist(err) {
			logrus.Warnf("Cannot stat mount point %s, treating %s namespace as not mounted: %v", mountPoint, kind, err)
		}
		return false, nil
	}
	if canonical, err := filepath.EvalSymlinks(mountPoint); err == nil {
		mountPoint = canonical
	}

	mounts, err := m.host.Mounts()
	if err != nil {
		return false, err
	}
	for _, mount := range mounts {
		if mount.FSType != "nsfs" || mount.Source != "nsfs" {
			continue
		}
		target, err := filepath.EvalSymlinks(mount.MountPoint)
		if err != nil {
			continue
		}
		if target != mountPoint {
			continue
		}
		logrus.Tracef("Found mounted persistent namespace at %s", mountPoint)
		return true, nil
	}
	return false, nil
}

// Status derives the state of the whole namespace set from the mount
// table. The result is exhaustive and exclusive: none, ready, or partial
// with 1..3 mounted types.
func (m *Manager) Status() (Status, error) {
	mounted := make(map[NSType]bool, len(SupportedNamespaces()))
	for _, kind := range SupportedNamespaces() {
		ok, err := m.IsMounted(kind)
		if err != nil {
			return Status{}, err
		}
		mounted[kind] = ok
	}
	return newStatus(mounted), nil
}

// HasSelfBindMount reports whether the base directory is already
// bind-mounted onto itself.
func (m *Manager) HasSelfBindMount() (bool, error) {
	baseDir, err := filepath.EvalSymlinks(m.baseDir)
	if err != nil {
		return false, fmt.Errorf("canonicalizing base directory: %w", err)
	}
	mounts, err := m.host.Mounts()
	if err != nil {
		return false, err
	}
	for _, mount := range mounts {
		root, err := filepath.EvalSymlinks(mount.Root)
		if err != nil {
			continue
		}
		if root != baseDir {
			continue
		}
		target, err := filepath.EvalSymlinks(mount.MountPoint)
		if err != nil {
			continue
		}
		if target != baseDir {
			continue
		}
		logrus.Tracef("Found base dir self bind mount: %+v", mount)
		return true, nil
	}
	return false, nil
}

// SelfBindMount bind-mounts the base directory onto itself and marks the
// mount private, so namespace mounts created inside it do not propagate
// into or out of the host mount namespace. The bind mount is rolled back
// when the private remount fails.
func (m *Manager) SelfBindMount() error {
	logrus.Debugf("Creating base dir private self bind mount at %s", m.baseDir)
	if err := unix.Mount(m.baseDir, m.baseDir, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind mounting base directory: %w", err)
	}
	if err := unix.Mount("", m.baseDir, "", unix.MS_PRIVATE, ""); err != nil {
		if uerr := unix.Unmount(m.baseDir, 0); uerr != nil {
			logrus.Warnf("Failed to roll back base dir bind mount: %v", uerr)
		}
		return fmt.Errorf("remounting base directory private: %w", err)
	}
	return nil
}

// UnmountBase removes the base directory's self bind mount. Callers treat
// failure as best-effort.
func (m *Manager) UnmountBase() error {
	return unix.Unmount(m.baseDir, 0)
}

// Unmount releases the pinned namespace of the given type. The mount
// point file itself is kept, the set is long-lived.
func (m *Manager) Unmount(kind NSType) error {
	mountPoint := m.MountPoint(kind)
	if err := unix.Unmount(mountPoint, 0); err != nil {
		return fmt.Errorf("unmounting persistent %s namespace: %w", kind, err)
	}
	return nil
}

// UnmountAll unmounts every currently mounted namespace of the set.
func (m *Manager) UnmountAll() error {
	for _, kind := range SupportedNamespaces() {
		mounted, err := m.IsMounted(kind)
		if err != nil {
			return err
		}
		if !mounted {
			continue
		}
		if err := m.Unmount(kind); err != nil {
			return err
		}
	}
	return nil
}
