package lib_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/warpbox/warpbox/internal/nsmgr"
)

var errBoom = errors.New("boom")

// Processes in the fake process table use pids above the kernel's default
// pid_max, so stray signals sent during the workflows hit nothing.
const (
	placeholderPID = 4999999
	vpnPID         = 4999998
	rootNetNSInode = 100
	setNetNSInode  = 200
	setPidNSInode  = 42
)

// fakeHost substitutes the kernel state reads with fixed data. The process
// table is mutable so command hooks can make spawned processes appear; the
// children slice is served for every queried pid.
type fakeHost struct {
	mounts   []nsmgr.MountInfo
	procs    []nsmgr.Process
	inodes   map[string]uint64
	children []int
}

func (h *fakeHost) Mounts() ([]nsmgr.MountInfo, error)  { return h.mounts, nil }
func (h *fakeHost) Processes() ([]nsmgr.Process, error) { return h.procs, nil }
func (h *fakeHost) Inode(path string) (uint64, error) {
	ino, ok := h.inodes[path]
	if !ok {
		return 0, fmt.Errorf("no inode for %s", path)
	}
	return ino, nil
}

func (h *fakeHost) Children(int) ([]int, error) { return h.children, nil }

// fakeRunner serves canned responses per command-line substring, records
// every invocation and lets tests hook background command creation.
type fakeRunner struct {
	calls     [][]string
	responses map[string]string
	failWith  map[string]error
	cmdFn     func(argv []string)
}

func (r *fakeRunner) Command(name string, args ...string) *exec.Cmd {
	argv := append([]string{name}, args...)
	r.calls = append(r.calls, argv)
	if r.cmdFn != nil {
		r.cmdFn(argv)
	}
	return exec.Command("true")
}

func (r *fakeRunner) Run(name string, args ...string) ([]byte, []byte, error) {
	argv := append([]string{name}, args...)
	r.calls = append(r.calls, argv)
	line := strings.Join(argv, " ")
	for key, err := range r.failWith {
		if strings.Contains(line, key) {
			return nil, nil, err
		}
	}
	for key, out := range r.responses {
		if strings.Contains(line, key) {
			return []byte(out), nil, nil
		}
	}
	return nil, nil, nil
}

func (r *fakeRunner) callsContaining(substr string) (matching [][]string) {
	for _, call := range r.calls {
		if strings.Contains(strings.Join(call, " "), substr) {
			matching = append(matching, call)
		}
	}
	return matching
}

// fakeLinkOps records link operations and serves configured existence.
type fakeLinkOps struct {
	existing map[string]bool
	delErr   error

	created [][3]string
	addrs   [][2]string
	ups     []string
	deleted []string
}

func (f *fakeLinkOps) LinkExists(name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakeLinkOps) CreateVethPair(name, peerName, nsPath string) error {
	f.created = append(f.created, [3]string{name, peerName, nsPath})
	return nil
}

func (f *fakeLinkOps) AddrAdd(name, cidr string) error {
	f.addrs = append(f.addrs, [2]string{name, cidr})
	return nil
}

func (f *fakeLinkOps) LinkSetUp(name string) error {
	f.ups = append(f.ups, name)
	return nil
}

func (f *fakeLinkOps) LinkDel(name string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

// touchMountPoints creates the four empty mount point files.
func touchMountPoints(baseDir string) {
	for _, kind := range nsmgr.SupportedNamespaces() {
		f, err := os.Create(filepath.Join(baseDir, string(kind)))
		if err != nil {
			panic(err)
		}
		f.Close()
	}
}

// nsfsEntry builds a mount table entry pinning the given namespace type.
func nsfsEntry(mgr *nsmgr.Manager, kind nsmgr.NSType) nsmgr.MountInfo {
	target, err := filepath.EvalSymlinks(mgr.MountPoint(kind))
	if err != nil {
		panic(err)
	}
	return nsmgr.MountInfo{
		Root:       fmt.Sprintf("%s:[4026532000]", kind),
		MountPoint: target,
		FSType:     "nsfs",
		Source:     "nsfs",
	}
}

// selfBindEntry builds the base directory's self bind mount entry.
func selfBindEntry(baseDir string) nsmgr.MountInfo {
	canonical, err := filepath.EvalSymlinks(baseDir)
	if err != nil {
		panic(err)
	}
	return nsmgr.MountInfo{
		Root:       canonical,
		MountPoint: canonical,
		FSType:     "tmpfs",
		Source:     "tmpfs",
	}
}

// pinnedEntries builds the complete mount table of a ready namespace set.
func pinnedEntries(mgr *nsmgr.Manager, baseDir string) []nsmgr.MountInfo {
	entries := []nsmgr.MountInfo{selfBindEntry(baseDir)}
	for _, kind := range nsmgr.SupportedNamespaces() {
		entries = append(entries, nsfsEntry(mgr, kind))
	}
	return entries
}

func initProc() nsmgr.Process {
	return nsmgr.Process{
		PID:        4999990,
		Cmdline:    []string{"tini", "--", "sleep", "infinity"},
		PidNSInode: setPidNSInode,
		NetNSInode: setNetNSInode,
	}
}

func hostInit() nsmgr.Process {
	return nsmgr.Process{
		PID:        1,
		Cmdline:    []string{"/sbin/init"},
		NetNSInode: rootNetNSInode,
	}
}
