package facade

import (
	"context"

	"github.com/emdx-dev/emdx/internal/task"
	"github.com/emdx-dev/emdx/internal/types"
)

// TaskAddArgs configures task_add() (spec.md 4.7).
type TaskAddArgs struct {
	Title       string
	Description string
	Priority    int
	CategoryKey string
	EpicKey     string
	ParentTaskID int64
	HasParent   bool
	IsEpic      bool
	Prompt      string
	HasPrompt   bool
}

// TaskAdd creates a task, delegating category sequence allocation and
// epic-parent validation to the storage layer (spec.md 4.7's add()).
func (f *Facade) TaskAdd(ctx context.Context, args TaskAddArgs) (*types.Task, error) {
	t := &types.Task{
		Title:        args.Title,
		Description:  args.Description,
		Priority:     args.Priority,
		CategoryKey:  args.CategoryKey,
		EpicKey:      args.EpicKey,
		ParentTaskID: args.ParentTaskID,
		HasParent:    args.HasParent,
		IsEpic:       args.IsEpic,
		Prompt:       args.Prompt,
		HasPrompt:    args.HasPrompt,
	}
	if err := f.Tasks.Add(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// TaskResolve resolves a `#id` or `KEY-N` identifier to a task.
func (f *Facade) TaskResolve(ctx context.Context, ident string) (*types.Task, error) {
	return f.Tasks.ResolveIdentifier(ctx, ident)
}

// TaskTransition moves a task through the status FSM. A task marked `done`
// while it blocks another task auto-unblocks that task iff no other blocker
// remains, per spec.md 8's boundary behaviour -- enforced here because
// "unblocked" is a derived read (ReadyTasks), not a stored status; no write
// is needed beyond the transition itself.
func (f *Facade) TaskTransition(ctx context.Context, id int64, status types.TaskStatus) error {
	return f.Tasks.Transition(ctx, id, status)
}

// TaskAddDependency wires a blocker -> blocked edge, rejecting cycles.
func (f *Facade) TaskAddDependency(ctx context.Context, blockerID, blockedID int64) error {
	return f.Tasks.AddDependency(ctx, blockerID, blockedID)
}

// TaskReady returns tasks ready to work on (spec.md 4.7's ready()).
func (f *Facade) TaskReady(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	return f.Tasks.Ready(ctx, filter)
}

// TaskList returns tasks matching an optional category/epic filter.
func (f *Facade) TaskList(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	return f.Store.ListTasks(ctx, filter)
}

// TaskView fetches a single task plus its dependency edges.
type TaskView struct {
	Task     *types.Task
	Blockers []int64
	Blocked  []int64
}

func (f *Facade) TaskView(ctx context.Context, id int64) (*TaskView, error) {
	t, err := f.Store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	blockers, err := f.Store.Blockers(ctx, id)
	if err != nil {
		return nil, err
	}
	blocked, err := f.Store.Blocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TaskView{Task: t, Blockers: blockers, Blocked: blocked}, nil
}

// TaskEpicProgress rolls up an epic's children by status.
func (f *Facade) TaskEpicProgress(ctx context.Context, epicKey string) (*task.EpicProgress, error) {
	return f.Tasks.EpicProgress(ctx, epicKey)
}

// TaskCompleteEpic marks an epic done, returning AllTerminal=false as a soft
// warning when children remain open (spec.md 4.7).
func (f *Facade) TaskCompleteEpic(ctx context.Context, epicTaskID int64, epicKey string) (*task.EpicProgress, error) {
	return f.Tasks.CompleteEpic(ctx, epicTaskID, epicKey)
}

// TaskUpsertCategory creates or renames a category.
func (f *Facade) TaskUpsertCategory(ctx context.Context, key, displayName string) error {
	return f.Store.UpsertCategory(ctx, key, displayName)
}
