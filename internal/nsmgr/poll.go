package nsmgr

import (
	"time"

	"github.com/warpbox/warpbox/internal/errdefs"
)

// Timing parameters for the bounded poll loops. These are deliberately not
// configurable: they encode behavioral compatibility with the external
// namespace helpers.
const (
	// PollInterval is the interval of every poll-until-predicate loop.
	PollInterval = 25 * time.Millisecond

	// CreateTimeout bounds the wait for the namespace init child to
	// appear underneath the unshare helper.
	CreateTimeout = 1 * time.Second

	// JoinTimeout bounds the wait for the placeholder process to finish
	// joining all namespaces before a target command is attached to it.
	JoinTimeout = 1 * time.Second
)

// PollUntil evaluates pred every interval until it holds or the ceiling
// elapses, in which case a Timeout error is returned. Errors from pred
// abort the poll immediately.
func PollUntil(interval, ceiling time.Duration, what string, pred func() (bool, error)) error {
	deadline := time.Now().Add(ceiling)
	for {
		ok, err := pred()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errdefs.Timeoutf("waiting for %s (waited %v)", what, ceiling)
		}
		time.Sleep(interval)
	}
}
