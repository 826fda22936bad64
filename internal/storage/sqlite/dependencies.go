package sqlite

import (
	"context"

	"github.com/emdx-dev/emdx/internal/types"
)

// WouldCycle runs a DFS over the current blocker graph starting at
// blockedID to see whether adding blockerID -> blockedID would create a
// path back to blockerID, per spec.md 4.7's add_dependency() contract.
func (s *SQLiteStorage) WouldCycle(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	if blockerID == blockedID {
		return true, nil
	}
	// A cycle exists iff blockedID can already (transitively) reach
	// blockerID through existing blocker edges -- i.e. blockedID already
	// blocks something that blocks ... blockerID.
	visited := map[int64]bool{}
	var walk func(id int64) (bool, error)
	walk = func(id int64) (bool, error) {
		if id == blockerID {
			return true, nil
		}
		if visited[id] {
			return false, nil
		}
		visited[id] = true
		rows, err := s.db.QueryContext(ctx, `SELECT blocked_task_id FROM task_dependencies WHERE blocker_task_id = ?`, id)
		if err != nil {
			return false, classify("would-cycle", err)
		}
		defer rows.Close()
		var next []int64
		for rows.Next() {
			var n int64
			if err := rows.Scan(&n); err != nil {
				return false, err
			}
			next = append(next, n)
		}
		if err := rows.Err(); err != nil {
			return false, err
		}
		for _, n := range next {
			found, err := walk(n)
			if err != nil {
				return false, err
			}
			if found {
				return true, nil
			}
		}
		return false, nil
	}
	return walk(blockedID)
}

// AddDependency inserts a blocker -> blocked edge after verifying it would
// not complete a cycle (spec.md 3: "Task Dependency" invariant).
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.TaskDependency) error {
	cyclic, err := s.WouldCycle(ctx, dep.BlockerTaskID, dep.BlockedTaskID)
	if err != nil {
		return err
	}
	if cyclic {
		return types.ErrCycle
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_dependencies (blocker_task_id, blocked_task_id) VALUES (?, ?)
		ON CONFLICT(blocker_task_id, blocked_task_id) DO NOTHING`,
		dep.BlockerTaskID, dep.BlockedTaskID)
	if err != nil {
		return classify("add-dependency", err)
	}
	return nil
}

// RemoveDependency deletes a blocker -> blocked edge if present.
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, blockerID, blockedID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM task_dependencies WHERE blocker_task_id = ? AND blocked_task_id = ?`,
		blockerID, blockedID)
	return classify("remove-dependency", err)
}

// Blockers returns the task ids that currently block taskID.
func (s *SQLiteStorage) Blockers(ctx context.Context, taskID int64) ([]int64, error) {
	return queryIDs(ctx, s.db, `SELECT blocker_task_id FROM task_dependencies WHERE blocked_task_id = ?`, taskID)
}

// Blocked returns the task ids currently blocked by taskID.
func (s *SQLiteStorage) Blocked(ctx context.Context, taskID int64) ([]int64, error) {
	return queryIDs(ctx, s.db, `SELECT blocked_task_id FROM task_dependencies WHERE blocker_task_id = ?`, taskID)
}

func queryIDs(ctx context.Context, q queryer, query string, arg int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, classify("query-ids", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
