package execution

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// Collector saves a finished execution's log as a document through save(),
// the atomic-output-capture half of spec.md 4.6. It is separate from
// Spawner so `emdx status`-style reattachment (collecting an execution that
// outlived the process that spawned it) doesn't need a live Handle.
type Collector struct {
	store  storage.Storage
	save   SaveFunc
	logger *zap.Logger
}

// NewCollector builds a Collector. save is the facade's SaveAgentOutput.
func NewCollector(store storage.Storage, save SaveFunc, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{store: store, save: save, logger: logger}
}

// Collect is invoked when a child exits. exitCode 0 means success: the log
// tail is read, a title derived from its first non-trivial line or heading,
// and the result saved as a document tagged subagent,agent:<type>, per
// spec.md 4.6's collect() contract. A non-zero exitCode marks the execution
// failed and saves nothing -- spec.md's end-to-end scenario 4 is exactly
// this branch. Collect is idempotent: calling it twice for an execution
// that already has a doc_id is a no-op (spec.md 8's round-trip law).
func (c *Collector) Collect(ctx context.Context, executionID int64, exitCode int) (*types.Document, error) {
	exec, err := c.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	if exec.HasDocID {
		return c.store.GetDocument(ctx, exec.DocID)
	}

	if exitCode != 0 {
		if err := c.store.FailExecution(ctx, executionID, exitCode); err != nil {
			return nil, fmt.Errorf("collect: mark failed: %w", err)
		}
		return nil, &types.ExecutionFailed{ExecutionID: executionID, ExitCode: exitCode}
	}

	content, err := readLogTail(exec.LogFile)
	if err != nil {
		c.logger.Warn("collect: failed to read log, saving empty output", zap.Int64("execution_id", executionID), zap.Error(err))
		content = ""
	}

	title := deriveTitle(content, exec.DocTitle, executionID)
	tags := []string{"subagent"}
	if exec.AgentType != "" {
		tags = append(tags, "agent:"+exec.AgentType)
	}

	doc, saveErr := c.save(ctx, title, content, tags, exec.TaskID, exec.HasTaskID)
	if saveErr != nil {
		// spec.md 4.6: "Save failure after exit -> completed status retained
		// (output preserved in log file); next invocation of collect is
		// idempotent."
		if completeErr := c.store.CompleteExecution(ctx, executionID, 0, false, exitCode); completeErr != nil {
			c.logger.Warn("collect: failed to mark completed after save failure", zap.Int64("execution_id", executionID), zap.Error(completeErr))
		}
		return nil, fmt.Errorf("collect: save output: %w", saveErr)
	}

	if err := c.store.CompleteExecution(ctx, executionID, doc.ID, true, exitCode); err != nil {
		return nil, fmt.Errorf("collect: mark completed: %w", err)
	}
	return doc, nil
}

// readLogTail reads a log file as saved by tailToFile. The file itself is
// already bounded to maxLogBytes -- a head-truncation rewrites it in place
// as the child runs -- so this is a plain read, not a second truncation
// pass. If the head was ever dropped, truncationMarker appears as the first
// line and is left in place so the saved document shows where output was
// cut.
func readLogTail(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the execution row this process wrote
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// deriveTitle picks the execution's first non-trivial content line (or a
// markdown heading) as a document title, falling back to the prompt-derived
// title recorded at spawn time, and finally a generic placeholder.
func deriveTitle(content, fallback string, executionID int64) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimLeft(line, "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 120 {
			line = line[:120]
		}
		return line
	}
	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("Agent execution #%d", executionID)
}

// ReapStale promotes any `running` execution whose heartbeat predates
// threshold ago into `stale`, per spec.md 4.6's reap_stale(): it only
// mutates DB rows, it never signals the OS process (spec.md 9's "unknown if
// still alive on another machine" open question, resolved as "leave as-is").
func ReapStale(ctx context.Context, store storage.Storage, threshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	stale, err := store.StaleExecutions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap stale: %w", err)
	}
	var n int
	for _, e := range stale {
		if err := store.MarkStale(ctx, e.ID); err != nil {
			return n, fmt.Errorf("reap stale: mark %d: %w", e.ID, err)
		}
		n++
	}
	return n, nil
}
