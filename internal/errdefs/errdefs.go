// Package errdefs defines the error classes surfaced by warpbox commands.
// Callers classify failures with errors.Is against the sentinels below;
// external command failures additionally carry their captured output as an
// *ExecError.
package errdefs

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrConfiguration indicates the platform data directory (or another
	// piece of static configuration) could not be resolved.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotRoot indicates the process lacks effective root privileges.
	ErrNotRoot = errors.New("effective root privileges required")

	// ErrDesync indicates the persistent namespace set is in a state the
	// construction workflow cannot safely continue from: either partially
	// mounted, or fully mounted with the anchoring init process gone.
	// Recovery is running the down command first.
	ErrDesync = errors.New("namespace state desynchronized, run \"down\" first")

	// ErrParse indicates unexpected output shape from a queried external
	// command.
	ErrParse = errors.New("unexpected command output")

	// ErrTimeout indicates a bounded poll expired before its predicate
	// held.
	ErrTimeout = errors.New("timed out")
)

// ExecError is returned when an external privileged command exits non-zero.
// Stdout and Stderr hold the captured output verbatim.
type ExecError struct {
	Argv   []string
	Status int
	Stdout string
	Stderr string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("command %q exited with status %d\nstdout: %s\nstderr: %s",
		strings.Join(e.Argv, " "), e.Status, e.Stdout, e.Stderr)
}

// WrapExec converts the error of a completed external command into an
// *ExecError when the command exited non-zero, preserving the captured
// output verbatim. Other errors (command not found, signals on setup) are
// wrapped as-is.
func WrapExec(argv []string, stdout, stderr []byte, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecError{
			Argv:   argv,
			Status: exitErr.ExitCode(),
			Stdout: string(stdout),
			Stderr: string(stderr),
		}
	}
	return fmt.Errorf("running %s: %w", argv[0], err)
}

// Timeoutf wraps ErrTimeout with a formatted description.
func Timeoutf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTimeout, fmt.Sprintf(format, args...))
}

// Parsef wraps ErrParse with a formatted description.
func Parsef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
