package cmdrunner

import (
	"bytes"
	"os/exec"
)

// Use a singleton instance because every module that shells out to the
// privileged helpers (unshare, nsenter, ip, iptables, mount, umount) wants
// access, and threading a runner through every call site would add a lot of
// complexity.
var commandRunner CommandRunner

// CommandRunner is an interface for executing external commands. It gives
// tests the option to intercept every helper invocation tool-wide.
type CommandRunner interface {
	// Command creates a process handle for a command that the caller will
	// start itself, typically to run it in the background.
	Command(string, ...string) *exec.Cmd

	// Run executes a command to completion, capturing stdout and stderr
	// separately. A non-zero exit status is reported as an *exec.ExitError
	// together with whatever output was captured.
	Run(string, ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Command(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

func (execRunner) Run(name string, args ...string) ([]byte, []byte, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Command calls Command on the configured runner, or the default exec-based
// implementation if none is set.
func Command(name string, args ...string) *exec.Cmd {
	return runner().Command(name, args...)
}

// Run calls Run on the configured runner, or the default exec-based
// implementation if none is set.
func Run(name string, args ...string) ([]byte, []byte, error) {
	return runner().Run(name, args...)
}

func runner() CommandRunner {
	if commandRunner == nil {
		return execRunner{}
	}
	return commandRunner
}

// SetCommandRunner replaces the singleton, usually with a recording fake.
func SetCommandRunner(r CommandRunner) {
	commandRunner = r
}

// Reset restores the default runner for more reliable unit testing.
func Reset() {
	commandRunner = nil
}
