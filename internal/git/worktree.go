// Package git isolates a spawned agent execution inside its own git
// worktree, the same worktree lifecycle the teacher used to isolate a
// sync branch, simplified for a single-execution, no-sharing use (spec.md
// 4.6, 5's "worktrees are per-execution, no sharing").
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WorktreeManager creates and tears down per-execution git worktrees
// rooted at repoPath.
type WorktreeManager struct {
	repoPath string
}

// NewWorktreeManager builds a manager for the repository at repoPath.
func NewWorktreeManager(repoPath string) *WorktreeManager {
	return &WorktreeManager{repoPath: repoPath}
}

// CreateExecutionWorktree creates a full-checkout worktree at worktreePath
// on branch, creating the branch off HEAD if it doesn't already exist.
// Unlike the teacher's sync-branch worktrees, an execution worktree needs
// the whole tree (the agent may touch any file), so no sparse-checkout is
// configured.
func (wm *WorktreeManager) CreateExecutionWorktree(branch, worktreePath string) error {
	pruneCmd := exec.Command("git", "worktree", "prune")
	pruneCmd.Dir = wm.repoPath
	_ = pruneCmd.Run()

	if _, err := os.Stat(worktreePath); err == nil {
		if err := wm.RemoveExecutionWorktree(worktreePath); err != nil {
			_ = os.RemoveAll(worktreePath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0750); err != nil {
		return fmt.Errorf("create worktree parent directory: %w", err)
	}

	var cmd *exec.Cmd
	if wm.branchExists(branch) {
		cmd = exec.Command("git", "worktree", "add", "-f", worktreePath, branch)
	} else {
		cmd = exec.Command("git", "worktree", "add", "-f", "-b", branch, worktreePath)
	}
	cmd.Dir = wm.repoPath

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("create worktree: %w\noutput: %s", err, output)
	}
	return nil
}

// RemoveExecutionWorktree removes worktreePath, falling back to a manual
// directory removal plus prune if `git worktree remove` itself fails (e.g.
// the agent left dirty state behind).
func (wm *WorktreeManager) RemoveExecutionWorktree(worktreePath string) error {
	cmd := exec.Command("git", "worktree", "remove", worktreePath, "--force")
	cmd.Dir = wm.repoPath

	if output, err := cmd.CombinedOutput(); err != nil {
		if removeErr := os.RemoveAll(worktreePath); removeErr != nil {
			return fmt.Errorf("remove worktree directory: %w (git error: %v, output: %s)", removeErr, err, output)
		}
		pruneCmd := exec.Command("git", "worktree", "prune")
		pruneCmd.Dir = wm.repoPath
		_ = pruneCmd.Run()
	}
	return nil
}

// CheckWorktreeHealth verifies worktreePath exists and is registered with
// git, telling whether an execution's worktree can still be inspected or
// must be treated as already gone. No code in this module calls it.
func (wm *WorktreeManager) CheckWorktreeHealth(worktreePath string) error {
	if _, err := os.Stat(worktreePath); os.IsNotExist(err) {
		return fmt.Errorf("worktree path does not exist: %s", worktreePath)
	}
	valid, err := wm.isValidWorktree(worktreePath)
	if err != nil {
		return fmt.Errorf("check worktree validity: %w", err)
	}
	if !valid {
		return fmt.Errorf("path exists but is not a registered git worktree: %s", worktreePath)
	}
	return nil
}

func (wm *WorktreeManager) isValidWorktree(worktreePath string) (bool, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = wm.repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("list worktrees: %w", err)
	}

	absWorktreePath, err := filepath.EvalSymlinks(worktreePath)
	if err != nil {
		absWorktreePath, err = filepath.Abs(worktreePath)
		if err != nil {
			return false, err
		}
	}

	for _, line := range strings.Split(string(output), "\n") {
		path, ok := strings.CutPrefix(line, "worktree ")
		if !ok {
			continue
		}
		path = strings.TrimSpace(path)
		absPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			absPath, err = filepath.Abs(path)
			if err != nil {
				continue
			}
		}
		if absPath == absWorktreePath {
			return true, nil
		}
	}
	return false, nil
}

func (wm *WorktreeManager) branchExists(branch string) bool {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch) // #nosec G204 -- branch name is generated from an execution id, not user input
	cmd.Dir = wm.repoPath
	return cmd.Run() == nil
}
