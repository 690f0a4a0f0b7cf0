package lib_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/warpbox/warpbox/internal/config"
	"github.com/warpbox/warpbox/internal/lib"
	"github.com/warpbox/warpbox/internal/netmgr"
	"github.com/warpbox/warpbox/internal/nsmgr"
	"github.com/warpbox/warpbox/utils/cmdrunner"
)

var _ = t.Describe("Down", func() {
	var (
		cfg    *config.Config
		host   *fakeHost
		runner *fakeRunner
		links  *fakeLinkOps
		ns     *nsmgr.Manager
		sut    *lib.Workflow
	)

	BeforeEach(func() {
		cfg = config.Default()
		cfg.BaseDir = t.MustTempDir("warpbox-down-")
		host = &fakeHost{inodes: map[string]uint64{}}
		runner = &fakeRunner{responses: map[string]string{}, failWith: map[string]error{}}
		links = &fakeLinkOps{existing: map[string]bool{}}
		cmdrunner.SetCommandRunner(runner)
		ns = nsmgr.NewWithHost(cfg.BaseDir, host)
		sut = lib.NewWithManagers(cfg, ns, netmgr.NewWithLinkOps(cfg, ns, links))
	})

	AfterEach(func() {
		cmdrunner.Reset()
	})

	It("should be a no-op on an already dismantled environment", func() {
		// Given no mounted namespaces, no processes, no veth pair

		// When
		err := sut.Down()

		// Then
		Expect(err).ToNot(HaveOccurred())
		Expect(runner.calls).To(BeEmpty())
		Expect(links.deleted).To(BeEmpty())
	})

	It("should dismantle in-namespace state before releasing the mounts", func() {
		// Given a fully constructed environment
		touchMountPoints(cfg.BaseDir)
		host.mounts = pinnedEntries(ns, cfg.BaseDir)
		host.procs = []nsmgr.Process{hostInit()}
		runner.responses["route show default"] = "default via 10.0.0.1 dev eth0"
		runner.failWith["-D"] = errBoom
		links.existing[cfg.HostVethName] = true

		// When
		err := sut.Down()

		// Then the pinned mount point files are plain files here, so the
		// final namespace unmount is the step that fails
		Expect(err).To(HaveOccurred())
		Expect(runner.callsContaining("-- umount /proc")).To(HaveLen(1))
		Expect(runner.callsContaining("-- umount /etc")).To(HaveLen(1))
		Expect(runner.callsContaining("ip link delete dev veth-warp-ns")).To(HaveLen(1))
		Expect(runner.callsContaining("-D POSTROUTING -t nat -s 10.200.0.0/24 -o eth0 -j MASQUERADE")).To(HaveLen(1))
		Expect(links.deleted).To(Equal([]string{cfg.HostVethName}))
	})

	It("should propagate a host veth endpoint that cannot be deleted", func() {
		// Given
		links.existing[cfg.HostVethName] = true
		links.delErr = errBoom

		// When
		err := sut.Down()

		// Then
		Expect(err).To(HaveOccurred())
	})
})
