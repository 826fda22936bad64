package execution

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/emdx-dev/emdx/internal/types"
)

// BatchOptions configures a delegate() call spanning multiple prompts
// (spec.md 4.6's "Parallelism model").
type BatchOptions struct {
	Options
	MaxConcurrency int
	PR             bool // commit + push + open a PR via gh once each execution completes
}

// BatchResult is one completed (or failed) execution in a delegate batch,
// streamed back in completion order rather than launch order (spec.md 4.6).
type BatchResult struct {
	ExecutionID int64
	Doc         *types.Document
	Err         error
	PRURL       string
}

// Runner pairs a Spawner with a Collector to implement delegate()'s full
// spawn -> stream logs -> collect lifecycle for a batch of prompts.
type Runner struct {
	spawner   *Spawner
	collector *Collector
	runner    CommandRunner
}

// NewRunner builds a batch Runner.
func NewRunner(spawner *Spawner, collector *Collector, cmdRunner CommandRunner) *Runner {
	if cmdRunner == nil {
		cmdRunner = ExecCommandRunner{}
	}
	return &Runner{spawner: spawner, collector: collector, runner: cmdRunner}
}

// Delegate spawns one execution per prompt, capped at opts.MaxConcurrency
// concurrently running children (default 5, per spec.md 6's
// max_concurrency), and streams BatchResults to the returned channel as
// each execution finishes -- not in launch order (spec.md 4.6). The
// channel is closed once every prompt has been spawned, run, and collected.
//
// Cancelling ctx mid-batch sends SIGTERM to every still-running child (5s
// grace, then SIGKILL) and marks them killed, per spec.md 5's cancellation
// contract; prompts not yet started are simply never spawned (the
// semaphore acquire for them fails with ctx.Err()).
func (r *Runner) Delegate(ctx context.Context, prompts []string, opts BatchOptions) <-chan BatchResult {
	out := make(chan BatchResult, len(prompts))
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	sem := semaphore.NewWeighted(int64(maxConcurrency))

	go func() {
		defer close(out)
		done := make(chan struct{}, len(prompts))
		for _, prompt := range prompts {
			prompt := prompt
			go func() {
				defer func() { done <- struct{}{} }()
				if err := sem.Acquire(ctx, 1); err != nil {
					out <- BatchResult{Err: fmt.Errorf("delegate: %w", err)}
					return
				}
				defer sem.Release(1)
				out <- r.runOne(ctx, prompt, opts)
			}()
		}
		for range prompts {
			<-done
		}
	}()

	return out
}

// runOne spawns one prompt, awaits it (honoring cancellation with the
// SIGTERM/grace/SIGKILL sequence), collects its output, and optionally
// opens a PR, returning the terminal BatchResult.
func (r *Runner) runOne(ctx context.Context, prompt string, opts BatchOptions) BatchResult {
	h, err := r.spawner.Spawn(ctx, prompt, opts.Options)
	if err != nil {
		return BatchResult{Err: fmt.Errorf("spawn: %w", err)}
	}

	exitCode, waitErr := h.Wait(ctx)
	if waitErr != nil && ctx.Err() != nil {
		h.Kill(5 * time.Second)
		_ = r.spawner.store.KillExecution(context.Background(), h.ID)
		if r.spawner.registry != nil {
			_ = r.spawner.registry.Unregister(h.ID)
		}
		if h.worktree != nil {
			_ = h.worktree.RemoveExecutionWorktree(h.wtPath)
		}
		return BatchResult{ExecutionID: h.ID, Err: types.ErrCancelled}
	}

	if h.worktree != nil {
		defer func() { _ = h.worktree.RemoveExecutionWorktree(h.wtPath) }()
	}

	doc, collectErr := r.collector.Collect(context.Background(), h.ID, exitCode)
	result := BatchResult{ExecutionID: h.ID, Doc: doc, Err: collectErr}

	if collectErr == nil && opts.PR && doc != nil && h.worktree != nil {
		url, prErr := r.openPR(ctx, h.wtPath, doc)
		if prErr != nil {
			result.Err = fmt.Errorf("pr creation: %w", prErr)
		} else {
			result.PRURL = url
			_ = r.spawner.store.SetExecutionPRURL(context.Background(), h.ID, url)
		}
	}
	return result
}

var prURLPattern = regexp.MustCompile(`https://\S+`)

// openPR commits and pushes the worktree's changes, then invokes `gh pr
// create`, parsing the resulting URL out of its stdout, per spec.md 4.6's
// "--pr commits + pushes + invokes the gh CLI" contract.
func (r *Runner) openPR(ctx context.Context, dir string, doc *types.Document) (string, error) {
	if _, err := r.runner.Run(ctx, dir, "git", "add", "-A"); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	if _, err := r.runner.Run(ctx, dir, "git", "commit", "-m", doc.Title); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	branch, err := r.runner.Run(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	if _, err := r.runner.Run(ctx, dir, "git", "push", "-u", "origin", branch); err != nil {
		return "", fmt.Errorf("git push: %w", err)
	}
	out, err := r.runner.Run(ctx, dir, "gh", "pr", "create", "--fill")
	if err != nil {
		return "", fmt.Errorf("gh pr create: %w", err)
	}
	url := prURLPattern.FindString(out)
	if url == "" {
		return "", fmt.Errorf("could not find PR url in gh output: %s", out)
	}
	return url, nil
}
