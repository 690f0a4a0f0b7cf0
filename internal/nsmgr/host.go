package nsmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// MountInfo is one entry of the live mount table.
type MountInfo struct {
	Root       string
	MountPoint string
	FSType     string
	Source     string
}

// Process is one entry of the host process table. Inodes identify the
// namespaces the process lives in.
type Process struct {
	PID        int
	Cmdline    []string
	PidNSInode uint64
	NetNSInode uint64
}

// Host abstracts the kernel state the manager reads: the mount table, the
// process table, file inodes and per-process child lists. The orchestration
// logic only ever goes through this interface, so tests can substitute a
// fake host.
type Host interface {
	Mounts() ([]MountInfo, error)
	Processes() ([]Process, error)
	Inode(path string) (uint64, error)
	Children(pid int) ([]int, error)
}

// procfsHost reads the real kernel state through /proc.
type procfsHost struct{}

func (procfsHost) Mounts() ([]MountInfo, error) {
	self, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("opening own proc entry: %w", err)
	}
	infos, err := self.MountInfo()
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	mounts := make([]MountInfo, 0, len(infos))
	for _, mi := range infos {
		mounts = append(mounts, MountInfo{
			Root:       mi.Root,
			MountPoint: mi.MountPoint,
			FSType:     mi.FSType,
			Source:     mi.Source,
		})
	}
	return mounts, nil
}

func (procfsHost) Processes() ([]Process, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("scanning process table: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		// Processes may exit mid-scan; skip the ones we cannot read.
		cmdline, err := p.CmdLine()
		if err != nil {
			continue
		}
		namespaces, err := p.Namespaces()
		if err != nil {
			continue
		}
		proc := Process{PID: p.PID, Cmdline: cmdline}
		for _, ns := range namespaces {
			switch ns.Type {
			case "pid":
				proc.PidNSInode = uint64(ns.Inode)
			case "net":
				proc.NetNSInode = uint64(ns.Inode)
			}
		}
		out = append(out, proc)
	}
	return out, nil
}

func (procfsHost) Inode(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return st.Ino, nil
}

// Children reads the forked children of all the process's tasks. The
// children files are read directly; procfs does not expose them.
func (procfsHost) Children(pid int) ([]int, error) {
	taskDir := fmt.Sprintf("/proc/%d/task", pid)
	tasks, err := os.ReadDir(taskDir)
	if err != nil {
		return nil, fmt.Errorf("listing tasks of %d: %w", pid, err)
	}
	var children []int
	for _, task := range tasks {
		data, err := os.ReadFile(filepath.Join(taskDir, task.Name(), "children"))
		if err != nil {
			return nil, fmt.Errorf("reading child list of %d: %w", pid, err)
		}
		for _, field := range strings.Fields(string(data)) {
			child, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("parsing child pid %q of %d: %w", field, pid, err)
			}
			children = append(children, child)
		}
	}
	return children, nil
}
