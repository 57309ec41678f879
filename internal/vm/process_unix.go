//go:build unix

package vm

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processExists sends signal 0. EPERM means the process exists but belongs
// to another user.
func processExists(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
