package nsmgr

import (
	"bytes"
	"fmt"
	"os"

	nspkg "github.com/containernetworking/plugins/pkg/ns"
	"github.com/sirupsen/logrus"

	"github.com/warpbox/warpbox/utils/cmdrunner"
)

// InitSupervisor is the minimal init run as pid 1 of the namespace set,
// supervising a sleep that anchors the pid namespace forever.
const InitSupervisor = "tini"

// idMapRange is the size of the single uid/gid range remapped to root
// inside the user namespace.
const idMapRange = 1200

// CreateNamespaces creates the four persistent namespaces, pins them onto
// the mount point files, and returns the pid of the init process anchoring
// the pid namespace.
//
// The external creation helper forks internally, so the helper's own pid
// is not the namespace's pid 1. The real init pid is discovered by polling
// the helper's child list until exactly one child appears.
func (m *Manager) CreateNamespaces() (int, error) {
	logrus.Debugf("Creating mount points for persistent namespaces under %s", m.baseDir)
	for _, kind := range SupportedNamespaces() {
		mountPoint := m.MountPoint(kind)
		if _, err := os.Stat(mountPoint); err == nil {
			continue
		}
		f, err := os.OpenFile(mountPoint, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, fmt.Errorf("creating persistent namespace mount point: %w", err)
		}
		f.Close()
	}

	args := []string{
		"--fork",
		"--mount-proc",
		"-r",
		fmt.Sprintf("--map-users=0,0,%d", idMapRange),
		fmt.Sprintf("--map-groups=0,0,%d", idMapRange),
		"--pid=" + m.MountPoint(PIDNS),
		"--user=" + m.MountPoint(USERNS),
		"--net=" + m.MountPoint(NETNS),
		"--mount=" + m.MountPoint(MNTNS),
		"--", InitSupervisor, "--", "sleep", "infinity",
	}
	logrus.Debugf("Calling unshare to create persistent namespaces: %v", args)

	var output bytes.Buffer
	helper := cmdrunner.Command("unshare", args...)
	helper.Stdout = &output
	helper.Stderr = &output
	if err := helper.Start(); err != nil {
		return 0, fmt.Errorf("starting namespace creation helper: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- helper.Wait() }()

	var initPID int
	err := PollUntil(PollInterval, CreateTimeout, "namespace init process", func() (bool, error) {
		select {
		case werr := <-exited:
			return false, fmt.Errorf(
				"namespace creation helper exited before its init child appeared: %v\noutput: %s",
				werr, output.String())
		default:
		}

		children, err := m.host.Children(helper.Process.Pid)
		if err != nil {
			return false, err
		}
		switch len(children) {
		case 0:
			return false, nil
		case 1:
			initPID = children[0]
			return true, nil
		default:
			return false, fmt.Errorf("namespace creation helper has %d children, expected one", len(children))
		}
	})
	if err != nil {
		if helper.Process != nil {
			_ = helper.Process.Kill()
		}
		return 0, err
	}

	for _, kind := range SupportedNamespaces() {
		if err := nspkg.IsNSorErr(m.MountPoint(kind)); err != nil {
			return 0, fmt.Errorf("pinned %s namespace is not a namespace file: %w", kind, err)
		}
	}

	logrus.Infof("Created persistent namespaces, init process is %d", initPID)
	return initPID, nil
}
