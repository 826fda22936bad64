//go:build unix

package execution

import (
	"os"
	"syscall"
)

// terminate sends SIGTERM, the graceful-shutdown signal spec.md 5's
// cancellation contract calls for, giving the child a chance to flush its
// log before the grace period elapses and Kill escalates to SIGKILL.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
