package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/emdx-dev/emdx/internal/types"
)

// UpsertCategory creates or updates a category's display name, leaving its
// sequence counter untouched (categories own a monotonic counter per
// spec.md 3).
func (s *SQLiteStorage) UpsertCategory(ctx context.Context, key, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (key, display_name) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET display_name = excluded.display_name`, key, displayName)
	if err != nil {
		return classify("upsert-category", err)
	}
	return nil
}

// GetCategory fetches a category by key.
func (s *SQLiteStorage) GetCategory(ctx context.Context, key string) (*types.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, display_name FROM categories WHERE key = ?`, key)
	var c types.Category
	if err := row.Scan(&c.Key, &c.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, classify("get-category", err)
	}
	return &c, nil
}

// NextSequenceNumber allocates the next KEY-N sequence number for a
// category under a serializing UPDATE ... RETURNING, avoiding the duplicate
// assignment race spec.md 4.3 calls out ("allocated under a per-category row
// lock"). The UPDATE ... RETURNING is a single statement, which SQLite runs
// atomically under its write lock, so concurrent callers never receive the
// same number; no explicit transaction is opened here.
func (s *SQLiteStorage) NextSequenceNumber(ctx context.Context, categoryKey string) (int, error) {
	return nextSequenceNumber(ctx, s.q(), categoryKey)
}

func nextSequenceNumber(ctx context.Context, q queryer, categoryKey string) (int, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO categories (key) VALUES (?) ON CONFLICT(key) DO NOTHING`, categoryKey); err != nil {
		return 0, classify("next-sequence:ensure-category", err)
	}
	row := q.QueryRowContext(ctx, `
		UPDATE categories SET next_sequence = next_sequence + 1
		WHERE key = ?
		RETURNING next_sequence - 1`, categoryKey)
	var seq int
	if err := row.Scan(&seq); err != nil {
		return 0, classify("next-sequence:allocate", err)
	}
	return seq, nil
}

// CreateTask inserts a task, allocating a category sequence number if a
// category was requested and validating epic-parent rules from spec.md 3.
func (s *SQLiteStorage) CreateTask(ctx context.Context, t *types.Task) error {
	return createTask(ctx, s.q(), t)
}

func createTask(ctx context.Context, q queryer, t *types.Task) error {
	if t.Title == "" {
		return types.ErrInvalidTitle
	}
	if t.EpicKey != "" {
		row := q.QueryRowContext(ctx, `SELECT is_epic FROM tasks WHERE category_key || '-' || sequence_number = ? OR CAST(id AS TEXT) = ?`, t.EpicKey, t.EpicKey)
		var isEpic int
		if err := row.Scan(&isEpic); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrEpicParent
			}
			return classify("create-task:check-epic", err)
		}
		if isEpic == 0 {
			return types.ErrEpicParent
		}
	}
	if t.IsEpic && t.EpicKey != "" {
		return types.ErrEpicNoParent
	}

	if t.CategoryKey != "" {
		seq, err := nextSequenceNumber(ctx, q, t.CategoryKey)
		if err != nil {
			return err
		}
		t.SequenceNumber = seq
		t.HasSequence = true
	}
	if t.Status == "" {
		t.Status = types.StatusOpen
	}

	var categoryKey, epicKey, prompt any
	if t.CategoryKey != "" {
		categoryKey = t.CategoryKey
	}
	if t.EpicKey != "" {
		epicKey = t.EpicKey
	}
	if t.HasPrompt {
		prompt = t.Prompt
	}
	var seqVal any
	if t.HasSequence {
		seqVal = t.SequenceNumber
	}
	var parentVal any
	if t.HasParent {
		parentVal = t.ParentTaskID
	}

	isEpicInt := 0
	if t.IsEpic {
		isEpicInt = 1
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO tasks (title, description, status, priority, category_key,
			sequence_number, epic_key, is_epic, parent_task_id, prompt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, string(t.Status), t.Priority, categoryKey,
		seqVal, epicKey, isEpicInt, parentVal, prompt)
	if err != nil {
		var serr *types.StorageError
		if errors.As(classify("create-task", err), &serr) && serr.Kind == types.KindUniqueViolation {
			return types.ErrSequenceTaken
		}
		return classify("create-task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create-task:last-insert-id", err)
	}
	t.ID = id
	return nil
}

// GetTask hydrates a task by internal id.
func (s *SQLiteStorage) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelectBase+` WHERE id = ?`, id)
	return scanTaskRow(row)
}

// GetTaskByDisplayID resolves a {CATEGORY}-{N} pair to a task, used by
// resolve_identifier() in spec.md 4.7.
func (s *SQLiteStorage) GetTaskByDisplayID(ctx context.Context, categoryKey string, seq int) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelectBase+` WHERE category_key = ? AND sequence_number = ?`, categoryKey, seq)
	return scanTaskRow(row)
}

const taskSelectBase = `
	SELECT id, title, description, status, priority, category_key, sequence_number,
		epic_key, is_epic, parent_task_id, prompt, created_at, completed_at
	FROM tasks`

func scanTaskRow(row *sql.Row) (*types.Task, error) {
	var t types.Task
	var categoryKey, epicKey, prompt sql.NullString
	var seq sql.NullInt64
	var parentID sql.NullInt64
	var completedAt sql.NullTime
	var isEpic int
	var status string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.Priority,
		&categoryKey, &seq, &epicKey, &isEpic, &parentID, &prompt, &t.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, classify("scan-task", err)
	}
	t.Status = types.TaskStatus(status)
	t.IsEpic = isEpic != 0
	if categoryKey.Valid {
		t.CategoryKey = categoryKey.String
	}
	if seq.Valid {
		t.SequenceNumber = int(seq.Int64)
		t.HasSequence = true
	}
	if epicKey.Valid {
		t.EpicKey = epicKey.String
	}
	if parentID.Valid {
		t.ParentTaskID = parentID.Int64
		t.HasParent = true
	}
	if prompt.Valid {
		t.Prompt = prompt.String
		t.HasPrompt = true
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// UpdateTaskStatus transitions a task's status, setting completed_at exactly
// when entering `done` and clearing it when leaving it (spec.md 3 invariant).
func (s *SQLiteStorage) UpdateTaskStatus(ctx context.Context, id int64, status types.TaskStatus) error {
	if status == types.StatusDone {
		_, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
		return classify("update-task-status", err)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ?, completed_at = NULL WHERE id = ?`, string(status), id)
	return classify("update-task-status", err)
}

// ListTasks returns tasks matching an optional category/epic filter.
func (s *SQLiteStorage) ListTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	query := taskSelectBase + ` WHERE 1=1`
	var args []any
	if filter.CategoryKey != "" {
		query += ` AND category_key = ?`
		args = append(args, filter.CategoryKey)
	}
	if filter.EpicKey != "" {
		query += ` AND epic_key = ?`
		args = append(args, filter.EpicKey)
	}
	query += ` ORDER BY priority DESC, category_key, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list-tasks", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

func scanTaskRows(rows *sql.Rows) ([]*types.Task, error) {
	var out []*types.Task
	for rows.Next() {
		var t types.Task
		var categoryKey, epicKey, prompt sql.NullString
		var seq sql.NullInt64
		var parentID sql.NullInt64
		var completedAt sql.NullTime
		var isEpic int
		var status string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &status, &t.Priority,
			&categoryKey, &seq, &epicKey, &isEpic, &parentID, &prompt, &t.CreatedAt, &completedAt); err != nil {
			return nil, classify("scan-task-rows", err)
		}
		t.Status = types.TaskStatus(status)
		t.IsEpic = isEpic != 0
		if categoryKey.Valid {
			t.CategoryKey = categoryKey.String
		}
		if seq.Valid {
			t.SequenceNumber = int(seq.Int64)
			t.HasSequence = true
		}
		if epicKey.Valid {
			t.EpicKey = epicKey.String
		}
		if parentID.Valid {
			t.ParentTaskID = parentID.Int64
			t.HasParent = true
		}
		if prompt.Valid {
			t.Prompt = prompt.String
			t.HasPrompt = true
		}
		if completedAt.Valid {
			t.CompletedAt = &completedAt.Time
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ReadyTasks returns open/active tasks all of whose blockers are done,
// ordered priority DESC, category, id -- spec.md 4.7's ready().
func (s *SQLiteStorage) ReadyTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	query := taskSelectBase + `
		WHERE status IN ('open', 'active')
		AND id NOT IN (
			SELECT td.blocked_task_id FROM task_dependencies td
			JOIN tasks bt ON bt.id = td.blocker_task_id
			WHERE bt.status != 'done'
		)`
	var args []any
	if filter.CategoryKey != "" {
		query += ` AND category_key = ?`
		args = append(args, filter.CategoryKey)
	}
	if filter.EpicKey != "" {
		query += ` AND epic_key = ?`
		args = append(args, filter.EpicKey)
	}
	query += ` ORDER BY priority DESC, category_key, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("ready-tasks", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// EpicChildren returns every task referencing epicKey, for epic_progress().
func (s *SQLiteStorage) EpicChildren(ctx context.Context, epicKey string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelectBase+` WHERE epic_key = ? ORDER BY id`, epicKey)
	if err != nil {
		return nil, classify("epic-children", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}
