// Package execution implements the Execution Subsystem (spec.md 4.6):
// spawning external agent processes, streaming their logs, heartbeat
// tracking, worktree isolation, atomic output capture, and PR linking.
//
// A spawned agent never talks back to the database directly -- the parent
// process owns every row write, matching spec.md 4.6's "a runner never
// updates the DB from within the child process."
package execution

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emdx-dev/emdx/internal/daemon"
	"github.com/emdx-dev/emdx/internal/git"
	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// maxLogBytes bounds a single execution's captured log, per spec.md 4.6's
// "truncated to 10MB" failure-semantics note and spec.md 6's log file
// format.
const maxLogBytes = 10 * 1024 * 1024

const truncationMarker = "--- truncated ---\n"

// SaveFunc is the narrow slice of the Data Model Layer's save() operation
// collect() needs: persisting a new document with the given tags. It is
// satisfied by internal/facade.Facade.SaveAgentOutput.
type SaveFunc func(ctx context.Context, title, content string, tags []string, taskID int64, hasTaskID bool) (*types.Document, error)

// CommandRunner abstracts an external CLI invocation (e.g. `gh pr create`),
// the same narrow interface spec.md 1 scopes external tools behind.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (stdout string, err error)
}

// ExecCommandRunner runs real OS subprocesses.
type ExecCommandRunner struct{}

// Run executes name with args in dir and returns trimmed combined output.
func (ExecCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrToolMissing, name)
	}
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- name/args come from internal callers, not raw user input
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Options configures one spawn() call (spec.md 4.6).
type Options struct {
	AgentType        string
	WorkingDir       string // base directory the child runs in, absent Worktree
	Worktree         bool
	RepoPath         string // required when Worktree is set
	TaskID           int64
	HasTaskID        bool
	HeartbeatSeconds int
}

// Spawner owns the configured agent CLI command, the log directory, and the
// heartbeat cadence used by every spawned execution.
type Spawner struct {
	store     storage.Storage
	argv      []string
	logDir    string
	registry  *daemon.Registry
	runner    CommandRunner
	heartbeat time.Duration
	logger    *zap.Logger
}

// New builds a Spawner. agentCommand is split the same whitespace-only way
// internal/llm splits its configured command (e.g. "claude --print").
func New(store storage.Storage, agentCommand, logDir string, registry *daemon.Registry, runner CommandRunner, heartbeat time.Duration, logger *zap.Logger) (*Spawner, error) {
	argv := strings.Fields(agentCommand)
	if len(argv) == 0 {
		return nil, fmt.Errorf("execution: agent command is empty")
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if runner == nil {
		runner = ExecCommandRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &Spawner{store: store, argv: argv, logDir: logDir, registry: registry, runner: runner, heartbeat: heartbeat, logger: logger}, nil
}

// Handle is the live state of one spawned execution, returned by Spawn and
// consumed by the caller to await completion.
type Handle struct {
	ID         int64
	LogFile    string
	WorkingDir string
	cmd        *exec.Cmd
	done       chan result
	cancelHB   context.CancelFunc
	worktree   *git.WorktreeManager
	wtPath     string
}

type result struct {
	exitCode int
	err      error
}

// Spawn writes a `running` execution row, creates the child's working
// directory (or git worktree), and launches the configured agent CLI with
// prompt piped to stdin -- never as an argv element, per spec.md 4.6's OS
// arg-length-limit rationale. The child's stdout+stderr stream to a log
// file as they're produced.
func (s *Spawner) Spawn(ctx context.Context, prompt string, opts Options) (*Handle, error) {
	row := &types.Execution{
		Status:    types.ExecRunning,
		AgentType: opts.AgentType,
		TaskID:    opts.TaskID,
		HasTaskID: opts.HasTaskID,
	}
	if len(prompt) > 0 {
		row.DocTitle = firstLine(prompt)
	}

	workDir := opts.WorkingDir
	var wtMgr *git.WorktreeManager
	var wtPath string
	if opts.Worktree {
		wtMgr = git.NewWorktreeManager(opts.RepoPath)
		wtPath = filepath.Join(os.TempDir(), fmt.Sprintf("emdx-exec-%d-%d", time.Now().UnixNano(), os.Getpid()))
	}

	if err := s.store.CreateExecution(ctx, row); err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}

	logPath := filepath.Join(s.logDir, fmt.Sprintf("%d.log", row.ID))
	if err := s.store.SetExecutionLogFile(ctx, row.ID, logPath); err != nil {
		return nil, fmt.Errorf("record log file: %w", err)
	}

	h := &Handle{ID: row.ID, LogFile: logPath, worktree: wtMgr, wtPath: wtPath}

	if opts.Worktree {
		branch := fmt.Sprintf("emdx-exec-%d", row.ID)
		if err := wtMgr.CreateExecutionWorktree(branch, wtPath); err != nil {
			_ = s.store.FailExecution(ctx, row.ID, -1)
			return nil, fmt.Errorf("create worktree: %w", err)
		}
		workDir = wtPath
	}
	h.WorkingDir = workDir

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 -- path built from our own log dir + execution id
	if err != nil {
		s.cleanupWorktree(h)
		_ = s.store.FailExecution(ctx, row.ID, -1)
		return nil, fmt.Errorf("create log file: %w", err)
	}

	cmd := buildCommand(ctx, s.argv, workDir)
	cmd.Stdin = strings.NewReader(prompt)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = logFile.Close()
		s.cleanupWorktree(h)
		_ = s.store.FailExecution(ctx, row.ID, -1)
		return nil, fmt.Errorf("pipe stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout // stderr and stdout share one pipe + log file, matching a single tailable stream

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		s.cleanupWorktree(h)
		_ = s.store.FailExecution(ctx, row.ID, -1)
		return nil, fmt.Errorf("spawn %s: %w", s.argv[0], err)
	}
	h.cmd = cmd

	pid := cmd.Process.Pid
	if s.registry != nil {
		_ = s.registry.Register(daemon.RegistryEntry{ExecutionID: row.ID, PID: pid, WorkingDir: workDir, StartedAt: time.Now().UTC()})
	}

	hbCtx, cancelHB := context.WithCancel(context.Background())
	h.cancelHB = cancelHB
	go s.heartbeatLoop(hbCtx, row.ID)

	h.done = make(chan result, 1)
	go func() {
		_, _ = tailToFile(stdout, logFile)
		_ = logFile.Close()
		waitErr := cmd.Wait()
		cancelHB()
		if s.registry != nil {
			_ = s.registry.Unregister(row.ID)
		}
		h.done <- result{exitCode: exitCodeOf(waitErr), err: waitErr}
	}()

	return h, nil
}

// buildCommand builds the child *exec.Cmd; factored out so tests can stub
// the agent binary by pointing argv at a test fixture.
func buildCommand(ctx context.Context, argv []string, dir string) *exec.Cmd {
	// #nosec G204 -- argv[0] comes from the operator's own config file (llm_command-style), not request input
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// tailToFile copies r into f, truncating from the head once maxLogBytes is
// exceeded and inserting truncationMarker in place of the dropped prefix,
// per spec.md 6's "older content truncated from the head" log file contract.
// f must support Seek/Truncate since a head-truncation rewrites the file
// in place rather than appending.
func tailToFile(r io.Reader, f *os.File) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	var ring []byte
	truncated := false
	br := bufio.NewReader(r)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			written += int64(n)
			ring = append(ring, chunk...)
			if excess := len(ring) - maxLogBytes + len(truncationMarker); excess > 0 {
				if excess > len(ring) {
					excess = len(ring)
				}
				ring = append([]byte(truncationMarker), ring[excess:]...)
				truncated = true
			}
			var werr error
			if truncated {
				werr = rewriteRing(f, ring)
			} else {
				_, werr = f.Write(chunk)
			}
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return written, nil
			}
			return written, err
		}
	}
}

// rewriteRing overwrites f's full contents with ring, the already
// head-truncated in-memory view of the log.
func rewriteRing(f *os.File, ring []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := f.Truncate(int64(len(ring))); err != nil {
		return err
	}
	_, err := f.Write(ring)
	return err
}

func (s *Spawner) heartbeatLoop(ctx context.Context, execID int64) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.UpdateExecutionHeartbeat(context.Background(), execID); err != nil {
				s.logger.Warn("heartbeat update failed", zap.Int64("execution_id", execID), zap.Error(err))
			}
		}
	}
}

func (s *Spawner) cleanupWorktree(h *Handle) {
	if h.worktree != nil {
		_ = h.worktree.RemoveExecutionWorktree(h.wtPath)
	}
}

// Wait blocks until the child exits and returns its exit code (-1 on a
// non-ExitError failure such as spawn-time errors already handled by Spawn).
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case r := <-h.done:
		return r.exitCode, r.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Kill sends SIGTERM, waits grace for a clean exit, then SIGKILLs, matching
// spec.md 5's "ctrl-C mid-batch" cancellation contract.
func (h *Handle) Kill(grace time.Duration) {
	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	_ = terminate(h.cmd.Process)
	select {
	case r := <-h.done:
		// Put the result back so a later Wait still receives it.
		h.done <- r
		return
	case <-time.After(grace):
	}
	_ = h.cmd.Process.Kill()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\n\r"); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
