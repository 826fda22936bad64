package facade

import (
	"context"

	"github.com/emdx-dev/emdx/internal/execution"
)

// DelegateArgs configures a delegate() call (spec.md 4.8).
type DelegateArgs struct {
	Prompts        []string
	AgentType      string
	MaxConcurrency int
	Worktree       bool
	RepoPath       string
	TaskID         int64
	HasTaskID      bool
	PR             bool
}

// DelegateBatch is delegate()'s return value: the channel streams
// BatchResults in completion order, not launch order (spec.md 4.6).
type DelegateBatch struct {
	Results <-chan execution.BatchResult
}

// Delegate spawns one execution per prompt and returns a streaming batch
// whose results arrive as each child completes. The facade does no
// terminal I/O itself -- the caller (cmd/emdx) is responsible for printing
// results as they stream in.
func (f *Facade) Delegate(ctx context.Context, args DelegateArgs) (*DelegateBatch, error) {
	opts := execution.BatchOptions{
		Options: execution.Options{
			AgentType: args.AgentType,
			Worktree:  args.Worktree,
			RepoPath:  args.RepoPath,
			TaskID:    args.TaskID,
			HasTaskID: args.HasTaskID,
		},
		MaxConcurrency: args.MaxConcurrency,
		PR:             args.PR,
	}
	ch := f.Runner.Delegate(ctx, args.Prompts, opts)
	return &DelegateBatch{Results: ch}, nil
}
