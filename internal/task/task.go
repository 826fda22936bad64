// Package task implements the thin business-logic layer over the task
// storage methods: identifier resolution, the status FSM, dependency
// wiring, ready-work queries, and epic progress rollup (spec.md 4.7).
package task

import (
	"context"
	"strconv"
	"strings"

	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// Service wraps a Storage with spec.md 4.7's task operations.
type Service struct {
	store storage.Storage
}

// New builds a Service.
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// transitions enumerates every status edge the FSM in spec.md 4.7 allows.
// Reopening (any state -> open) is always permitted, matching the
// diagram's "(reopen via `u` -> open)" note.
var transitions = map[types.TaskStatus]map[types.TaskStatus]bool{
	types.StatusOpen:    {types.StatusActive: true, types.StatusWontdo: true, types.StatusBlocked: true},
	types.StatusActive:  {types.StatusDone: true, types.StatusBlocked: true, types.StatusWontdo: true},
	types.StatusBlocked: {types.StatusActive: true, types.StatusWontdo: true},
	types.StatusDone:    {},
	types.StatusWontdo:  {},
}

// Add creates a task, delegating validation (epic-parent checks, category
// sequence allocation) to the storage layer, which already enforces
// spec.md 3's invariants.
func (s *Service) Add(ctx context.Context, t *types.Task) error {
	return s.store.CreateTask(ctx, t)
}

// ResolveIdentifier parses either a bare/`#`-prefixed numeric id or a
// `<CATEGORY>-<N>` display id and returns the matching task (spec.md 4.7's
// resolve_identifier()).
func (s *Service) ResolveIdentifier(ctx context.Context, ident string) (*types.Task, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, types.ErrNotFound
	}

	if trimmed := strings.TrimPrefix(ident, "#"); trimmed != ident || isAllDigits(ident) {
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, types.ErrNotFound
		}
		return s.store.GetTask(ctx, id)
	}

	if dash := strings.LastIndex(ident, "-"); dash > 0 {
		category := ident[:dash]
		seqStr := ident[dash+1:]
		if seq, err := strconv.Atoi(seqStr); err == nil {
			return s.store.GetTaskByDisplayID(ctx, category, seq)
		}
	}

	return nil, types.ErrNotFound
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Transition moves a task to newStatus if the edge is allowed by the FSM,
// rejecting anything else with ErrInvalidTransition (spec.md 4.7).
func (s *Service) Transition(ctx context.Context, id int64, newStatus types.TaskStatus) error {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if newStatus == types.StatusOpen {
		return s.store.UpdateTaskStatus(ctx, id, types.StatusOpen)
	}
	if !transitions[t.Status][newStatus] {
		return types.ErrInvalidTransition
	}
	return s.store.UpdateTaskStatus(ctx, id, newStatus)
}

// AddDependency wires a blocker -> blocked edge, delegating cycle rejection
// to storage.AddDependency (spec.md 4.7's add_dependency()).
func (s *Service) AddDependency(ctx context.Context, blockerID, blockedID int64) error {
	return s.store.AddDependency(ctx, &types.TaskDependency{BlockerTaskID: blockerID, BlockedTaskID: blockedID})
}

// Ready returns tasks whose blockers are all done, in priority order
// (spec.md 4.7's ready()).
func (s *Service) Ready(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	return s.store.ReadyTasks(ctx, filter)
}

// EpicProgress aggregates an epic's children by status (spec.md 4.7's
// epic_progress()).
type EpicProgress struct {
	Done        int
	Total       int
	Percent     float64
	AllTerminal bool // every child is done or wontdo
}

// EpicProgress computes the rollup for epicKey's children.
func (s *Service) EpicProgress(ctx context.Context, epicKey string) (*EpicProgress, error) {
	children, err := s.store.EpicChildren(ctx, epicKey)
	if err != nil {
		return nil, err
	}
	p := &EpicProgress{Total: len(children), AllTerminal: true}
	for _, c := range children {
		switch c.Status {
		case types.StatusDone:
			p.Done++
		case types.StatusWontdo:
			// terminal, but not counted as "done" for the percentage
		default:
			p.AllTerminal = false
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Done) / float64(p.Total) * 100
	}
	return p, nil
}

// CompleteEpic marks an epic done, returning AllTerminal=false as a soft
// warning (never a hard block) when some children are still open/active/
// blocked, per spec.md 4.7's invariant.
func (s *Service) CompleteEpic(ctx context.Context, epicTaskID int64, epicKey string) (*EpicProgress, error) {
	progress, err := s.EpicProgress(ctx, epicKey)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTaskStatus(ctx, epicTaskID, types.StatusDone); err != nil {
		return nil, err
	}
	return progress, nil
}
