// Package hooks runs user-supplied executables in reaction to document
// lifecycle events, the same external-extensibility mechanism the teacher
// exposes for issues, retargeted at documents.
package hooks

import (
	"os"
	"path/filepath"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

// Event names recognised by eventToHook.
const (
	EventSave    = "save"
	EventEdit    = "edit"
	EventDelete  = "delete"
	EventRestore = "restore"
)

// Hook script names, one per event, looked up under hooksDir.
const (
	HookOnSave    = "on_save"
	HookOnEdit    = "on_edit"
	HookOnDelete  = "on_delete"
	HookOnRestore = "on_restore"
)

// Runner executes hook scripts found under a workspace's .emdx/hooks
// directory.
type Runner struct {
	hooksDir string
	timeout  time.Duration
}

// NewRunner builds a Runner rooted at hooksDir directly.
func NewRunner(hooksDir string) *Runner {
	return &Runner{hooksDir: hooksDir, timeout: 10 * time.Second}
}

// NewRunnerFromWorkspace builds a Runner for workspaceRoot/.emdx/hooks.
func NewRunnerFromWorkspace(workspaceRoot string) *Runner {
	return NewRunner(filepath.Join(workspaceRoot, ".emdx", "hooks"))
}

// Run fires a hook asynchronously and ignores its result; callers that need
// the outcome should use RunSync instead. The facade uses this for save/edit
// so a slow hook never blocks the operation it's reacting to.
func (r *Runner) Run(event string, doc *types.Document) {
	hookName := eventToHook(event)
	if hookName == "" {
		return
	}
	hookPath := filepath.Join(r.hooksDir, hookName)
	if !executable(hookPath) {
		return
	}
	go func() {
		_ = r.runHook(hookPath, event, doc)
	}()
}

// RunSync fires a hook and waits for it, returning any error. runHook sets
// EMDX_AUTO_SAVE=1 in the child's environment so a hook that itself shells
// out to `emdx save` doesn't re-trigger this same hook.
func (r *Runner) RunSync(event string, doc *types.Document) error {
	hookName := eventToHook(event)
	if hookName == "" {
		return nil
	}
	hookPath := filepath.Join(r.hooksDir, hookName)
	if !executable(hookPath) {
		return nil
	}
	return r.runHook(hookPath, event, doc)
}

// HookExists reports whether an executable hook is installed for event.
func (r *Runner) HookExists(event string) bool {
	hookName := eventToHook(event)
	if hookName == "" {
		return false
	}
	return executable(filepath.Join(r.hooksDir, hookName))
}

func executable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

func eventToHook(event string) string {
	switch event {
	case EventSave:
		return HookOnSave
	case EventEdit:
		return HookOnEdit
	case EventDelete:
		return HookOnDelete
	case EventRestore:
		return HookOnRestore
	default:
		return ""
	}
}
