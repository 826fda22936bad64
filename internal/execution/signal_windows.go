//go:build windows

package execution

import "os"

// terminate has no graceful-signal equivalent to SIGTERM on Windows, so
// Kill's grace period is skipped straight to a hard kill.
func terminate(p *os.Process) error {
	return p.Kill()
}
