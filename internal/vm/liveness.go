package vm

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ProcessChecker reports whether a host process exists.
type ProcessChecker interface {
	ProcessExists(pid int) bool
}

// HostProcesses checks the real host process table.
type HostProcesses struct{}

// ProcessExists reports whether pid names a live process on this host.
func (HostProcesses) ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	return processExists(pid)
}

// LivenessChecker decides whether a VM's hypervisor is running from the
// vm.pid marker in its directory.
type LivenessChecker struct {
	Paths     *Paths
	Processes ProcessChecker
}

// NewLivenessChecker returns a checker over the host process table.
func NewLivenessChecker(p *Paths) *LivenessChecker {
	return &LivenessChecker{Paths: p, Processes: HostProcesses{}}
}

// IsRunning reports whether the named VM is running.
// A marker that cannot be read or parsed is removed.
func (c *LivenessChecker) IsRunning(name string) (bool, error) {
	root, err := c.Paths.FindVMDir(name)
	if err != nil {
		return false, err
	}
	pid, ok := c.readPID(root)
	if !ok {
		return false, nil
	}
	return c.Processes.ProcessExists(pid), nil
}

// PID returns the pid recorded for a running VM, or 0.
func (c *LivenessChecker) PID(name string) int {
	root := c.Paths.VMRoot(name)
	pid, ok := c.readPID(root)
	if !ok || !c.Processes.ProcessExists(pid) {
		return 0
	}
	return pid
}

func (c *LivenessChecker) readPID(root string) (int, bool) {
	path := PIDPath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false
		}
		logrus.Debugf("Unreadable pid file %s: %v", path, err)
		removeStale(path)
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		logrus.Debugf("Stale pid file %s: %q", path, strings.TrimSpace(string(data)))
		removeStale(path)
		return 0, false
	}
	return pid, true
}

func removeStale(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to remove stale pid file %s: %v", path, err)
	}
}
