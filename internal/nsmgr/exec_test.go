package nsmgr_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/warpbox/warpbox/internal/errdefs"
	"github.com/warpbox/warpbox/internal/nsmgr"
	"github.com/warpbox/warpbox/utils/cmdrunner"
)

var _ = t.Describe("RunInAllNamespaces", func() {
	var (
		host   *fakeHost
		runner *fakeRunner
		sut    *nsmgr.Manager
	)

	BeforeEach(func() {
		host = &fakeHost{inodes: map[string]uint64{"/base/pid": 777}}
		runner = &fakeRunner{}
		cmdrunner.SetCommandRunner(runner)
		sut = nsmgr.NewWithHost("/base", host)
	})

	AfterEach(func() {
		cmdrunner.Reset()
	})

	It("should release the placeholder and never the namespace anchor", func() {
		// Given a live anchor process whose name and pid namespace match
		// what the init supervisor keeps running inside the set
		anchor := exec.Command("sleep", "60")
		Expect(anchor.Start()).To(Succeed())
		defer func() {
			_ = anchor.Process.Kill()
			_ = anchor.Wait()
		}()
		host.procs = []nsmgr.Process{
			{PID: anchor.Process.Pid, Cmdline: []string{"sleep", "infinity"}, PidNSInode: 777},
		}
		host.childrenFn = func(int) ([]int, error) {
			return []int{4999999}, nil
		}

		// When
		_, err := sut.RunInAllNamespaces("true")

		// Then the target joined the forked placeholder and the anchor is
		// still alive
		Expect(err).ToNot(HaveOccurred())
		Expect(runner.calls).To(ContainElement(
			[]string{"nsenter", "-t", "4999999", "-a", "--", "true"}))
		Expect(unix.Kill(anchor.Process.Pid, 0)).To(Succeed())
	})

	It("should time out when the placeholder never forks", func() {
		// Given a helper that never gets a child
		host.childrenFn = func(int) ([]int, error) { return nil, nil }

		// When
		_, err := sut.RunInAllNamespaces("true")

		// Then
		Expect(err).To(MatchError(errdefs.ErrTimeout))
	})

	It("should fail on an ambiguous placeholder helper", func() {
		// Given
		host.childrenFn = func(int) ([]int, error) { return []int{10, 11}, nil }

		// When
		_, err := sut.RunInAllNamespaces("true")

		// Then
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(errdefs.ErrTimeout))
	})
})
