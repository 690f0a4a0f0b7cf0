package netmgr

import (
	"github.com/sirupsen/logrus"

	"github.com/warpbox/warpbox/internal/errdefs"
	"github.com/warpbox/warpbox/utils/cmdrunner"
)

const iptablesPath = "/usr/sbin/iptables"

// appendRule appends one firewall rule. Insertion is unconditional; the
// caller is responsible for not installing duplicates.
func appendRule(rule []string) error {
	stdout, stderr, err := cmdrunner.Run(iptablesPath, rule...)
	if err != nil {
		return errdefs.WrapExec(append([]string{iptablesPath}, rule...), stdout, stderr, err)
	}
	return nil
}

// deleteRule issues delete-by-specification until the kernel reports no
// matching rule. Firewall deletes remove one matching rule at a time, so
// the loop terminates on the first failing delete.
func deleteRule(rule []string) {
	args := append([]string{"-D"}, rule...)
	for {
		if _, _, err := cmdrunner.Run(iptablesPath, args...); err != nil {
			logrus.Tracef("Stopping firewall rule deletion for %v: %v", rule, err)
			return
		}
	}
}
