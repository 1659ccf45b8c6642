//go:build !windows

package lock

import (
	"errors"
	"syscall"
)

// processExists probes pid with signal 0. EPERM still means the process is alive.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
