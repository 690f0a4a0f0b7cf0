package nsmgr

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/warpbox/warpbox/internal/errdefs"
	"github.com/warpbox/warpbox/utils/cmdrunner"
)

// run executes an external command to completion and maps a non-zero exit
// status to an *errdefs.ExecError carrying the captured output verbatim.
func run(name string, args ...string) ([]byte, error) {
	stdout, stderr, err := cmdrunner.Run(name, args...)
	if err != nil {
		return nil, errdefs.WrapExec(append([]string{name}, args...), stdout, stderr, err)
	}
	return stdout, nil
}

// RunInNamespace executes argv after entering exactly the one given
// namespace of the persistent set, leaving all others as the caller's. The
// command's stdout is returned; a non-zero exit yields an
// *errdefs.ExecError.
func (m *Manager) RunInNamespace(kind NSType, argv ...string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command for %s namespace", kind)
	}
	args := []string{fmt.Sprintf("--%s=%s", kind, m.MountPoint(kind)), "--"}
	args = append(args, argv...)
	logrus.Tracef("Entering %s namespace for %v", kind, argv)
	return run("nsenter", args...)
}

// placeholderHorizon is the sleep duration of the join placeholder, in
// seconds. A placeholder whose release signal is missed exits on its own
// when the horizon elapses instead of lingering in the set forever.
const placeholderHorizon = "3600"

// joinAllNamespaces arranges for a join target that is simultaneously
// inside all four pinned namespaces and returns its pid. The namespace
// entry helper cannot fork correctly when asked to join a pid namespace
// off a set of file paths, so a transient placeholder is spawned off the
// mount point files first and target commands then join the placeholder's
// namespaces by pid. release terminates the placeholder.
func (m *Manager) joinAllNamespaces() (pid int, release func(), err error) {
	args := make([]string, 0, 8)
	for _, kind := range SupportedNamespaces() {
		args = append(args, fmt.Sprintf("--%s=%s", kind, m.MountPoint(kind)))
	}
	args = append(args, "--", "sleep", placeholderHorizon)

	helper := cmdrunner.Command("nsenter", args...)
	if err := helper.Start(); err != nil {
		return 0, nil, fmt.Errorf("starting placeholder process: %w", err)
	}
	go helper.Wait() //nolint:errcheck // reaped for its exit status only

	// The helper forks the placeholder into the pid namespace; its only
	// child is the placeholder. The namespace is never scanned by process
	// name here: the anchoring sleep under the init supervisor would match
	// a name scan too.
	var placeholderPID int
	err = PollUntil(PollInterval, JoinTimeout, "placeholder process to join all namespaces", func() (bool, error) {
		children, err := m.host.Children(helper.Process.Pid)
		if err != nil {
			return false, err
		}
		switch len(children) {
		case 0:
			return false, nil
		case 1:
			placeholderPID = children[0]
			return true, nil
		default:
			return false, fmt.Errorf("placeholder helper has %d children, expected one", len(children))
		}
	})
	if err != nil {
		// A placeholder that was already forked exits when its horizon
		// elapses.
		if helper.Process != nil {
			_ = helper.Process.Kill()
		}
		return 0, nil, err
	}

	release = func() {
		if err := unix.Kill(placeholderPID, unix.SIGTERM); err != nil {
			logrus.Debugf("Failed to terminate placeholder %d: %v", placeholderPID, err)
		}
	}
	return placeholderPID, release, nil
}

// RunInAllNamespaces executes argv joined to every namespace of the set
// and waits for it, capturing output like RunInNamespace.
func (m *Manager) RunInAllNamespaces(argv ...string) ([]byte, error) {
	pid, release, err := m.joinAllNamespaces()
	if err != nil {
		return nil, err
	}
	defer release()

	args := append([]string{"-t", strconv.Itoa(pid), "-a", "--"}, argv...)
	return run("nsenter", args...)
}

// SpawnInAllNamespaces starts argv joined to every namespace of the set as
// a long-running background process and returns without waiting on it.
func (m *Manager) SpawnInAllNamespaces(argv ...string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command for namespace spawn")
	}
	pid, release, err := m.joinAllNamespaces()
	if err != nil {
		return nil, err
	}

	args := append([]string{"-t", strconv.Itoa(pid), "-a", "--"}, argv...)
	cmd := cmdrunner.Command("nsenter", args...)
	if err := cmd.Start(); err != nil {
		release()
		return nil, fmt.Errorf("spawning %v in all namespaces: %w", argv, err)
	}
	go cmd.Wait() //nolint:errcheck // not supervised beyond reaping

	// Grace period: the entry helper forks its target only once it holds
	// all the namespace handles. Keep the placeholder alive until then.
	if err := PollUntil(PollInterval, JoinTimeout, "spawned process to attach", func() (bool, error) {
		children, err := m.host.Children(cmd.Process.Pid)
		if err != nil {
			return false, err
		}
		return len(children) > 0, nil
	}); err != nil {
		logrus.Warnf("Releasing placeholder without observing %v attach: %v", argv, err)
	}
	release()

	logrus.Debugf("Spawned %v in all namespaces via pid %d", argv, pid)
	return cmd, nil
}
