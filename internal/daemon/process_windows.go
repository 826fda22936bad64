//go:build windows

package daemon

import "os"

// isProcessAlive reports whether pid names a live process. Windows has no
// signal-0 probe, so FindProcess succeeding is the best available check.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
