package nsmgr

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// FindNamespacedProcess scans all host-visible processes for one whose
// argv[0] ends with name and which is not in the host's root network
// namespace, so a host-side instance of the same binary is never confused
// with the namespaced one. Returns nil when no such process exists.
func (m *Manager) FindNamespacedProcess(name string) (*Process, error) {
	procs, err := m.host.Processes()
	if err != nil {
		return nil, err
	}

	var rootNetNS uint64
	for _, p := range procs {
		if p.PID == 1 {
			rootNetNS = p.NetNSInode
			break
		}
	}

	for i := range procs {
		p := &procs[i]
		if len(p.Cmdline) == 0 || !strings.HasSuffix(p.Cmdline[0], name) {
			continue
		}
		if rootNetNS != 0 && p.NetNSInode == rootNetNS {
			continue
		}
		logrus.Tracef("Found namespaced process %q with pid %d", name, p.PID)
		return p, nil
	}
	return nil, nil
}

// FindHostProcess scans all host-visible processes for one whose argv[0]
// ends with name, regardless of namespace. Used as a conservative
// duplicate-prevention check before spawning supervised processes.
func (m *Manager) FindHostProcess(name string) (*Process, error) {
	procs, err := m.host.Processes()
	if err != nil {
		return nil, err
	}
	for i := range procs {
		p := &procs[i]
		if len(p.Cmdline) > 0 && strings.HasSuffix(p.Cmdline[0], name) {
			return p, nil
		}
	}
	return nil, nil
}

// AllNamespaceProcesses returns the host-visible processes living in the
// pinned pid namespace, identified by comparing each process's pid
// namespace inode with the inode of the pid mount point file. The result
// reflects the process table at enumeration time; processes that exit
// mid-scan are skipped.
func (m *Manager) AllNamespaceProcesses() ([]Process, error) {
	inode, err := m.host.Inode(m.MountPoint(PIDNS))
	if err != nil {
		return nil, err
	}
	procs, err := m.host.Processes()
	if err != nil {
		return nil, err
	}
	inSet := make([]Process, 0, 4)
	for _, p := range procs {
		if p.PidNSInode == inode {
			inSet = append(inSet, p)
		}
	}
	return inSet, nil
}

// InitProcess locates the init process anchoring the pid namespace: a
// member of the namespace set whose command line begins with the init
// supervisor name. Returns nil when the anchoring process is gone.
func (m *Manager) InitProcess() (*Process, error) {
	procs, err := m.AllNamespaceProcesses()
	if err != nil {
		return nil, err
	}
	for i := range procs {
		p := &procs[i]
		if len(p.Cmdline) > 0 && strings.HasPrefix(p.Cmdline[0], InitSupervisor) {
			return p, nil
		}
	}
	return nil, nil
}
