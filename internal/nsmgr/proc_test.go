package nsmgr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/warpbox/warpbox/internal/nsmgr"
)

var _ = t.Describe("FindNamespacedProcess", func() {
	var (
		host *fakeHost
		sut  *nsmgr.Manager
	)

	BeforeEach(func() {
		host = &fakeHost{
			procs: []nsmgr.Process{
				{PID: 1, Cmdline: []string{"/sbin/init"}, NetNSInode: 100},
			},
		}
		sut = nsmgr.NewWithHost("/base", host)
	})

	It("should find a process by argv0 suffix outside the root net namespace", func() {
		// Given
		host.procs = append(host.procs,
			nsmgr.Process{PID: 42, Cmdline: []string{"/usr/bin/warp-svc"}, NetNSInode: 200})

		// When
		p, err := sut.FindNamespacedProcess("warp-svc")

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(p).NotTo(BeNil())
		Expect(p.PID).To(Equal(42))
	})

	It("should exclude processes in the root net namespace", func() {
		// Given
		host.procs = append(host.procs,
			nsmgr.Process{PID: 42, Cmdline: []string{"/usr/bin/warp-svc"}, NetNSInode: 100})

		// When
		p, err := sut.FindNamespacedProcess("warp-svc")

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(BeNil())
	})

	It("should return nil when nothing matches", func() {
		// When
		p, err := sut.FindNamespacedProcess("danted")

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(BeNil())
	})
})

var _ = t.Describe("AllNamespaceProcesses", func() {
	It("should filter by the pid mount point inode", func() {
		// Given
		host := &fakeHost{
			procs: []nsmgr.Process{
				{PID: 1, Cmdline: []string{"/sbin/init"}, PidNSInode: 100},
				{PID: 1000, Cmdline: []string{"tini", "--", "sleep", "infinity"}, PidNSInode: 777},
				{PID: 1001, Cmdline: []string{"sleep", "infinity"}, PidNSInode: 777},
			},
			inodes: map[string]uint64{"/base/pid": 777},
		}
		sut := nsmgr.NewWithHost("/base", host)

		// When
		procs, err := sut.AllNamespaceProcesses()

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(procs).To(HaveLen(2))
	})
})

var _ = t.Describe("InitProcess", func() {
	var host *fakeHost

	BeforeEach(func() {
		host = &fakeHost{inodes: map[string]uint64{"/base/pid": 777}}
	})

	It("should locate the init supervisor inside the set", func() {
		// Given
		host.procs = []nsmgr.Process{
			{PID: 1001, Cmdline: []string{"sleep", "infinity"}, PidNSInode: 777},
			{PID: 1000, Cmdline: []string{"tini", "--", "sleep", "infinity"}, PidNSInode: 777},
		}
		sut := nsmgr.NewWithHost("/base", host)

		// When
		init, err := sut.InitProcess()

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(init).NotTo(BeNil())
		Expect(init.PID).To(Equal(1000))
	})

	It("should return nil when the anchoring process is gone", func() {
		// Given
		sut := nsmgr.NewWithHost("/base", host)

		// When
		init, err := sut.InitProcess()

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(init).To(BeNil())
	})
})
