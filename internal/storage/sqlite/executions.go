package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

// CreateExecution inserts a running execution row, spec.md 4.6's delegate()
// bookkeeping step.
func (s *SQLiteStorage) CreateExecution(ctx context.Context, e *types.Execution) error {
	if e.Status == "" {
		e.Status = types.ExecRunning
	}
	now := time.Now().UTC()
	var docID, taskID any
	if e.HasDocID {
		docID = e.DocID
	}
	if e.HasTaskID {
		taskID = e.TaskID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (doc_id, doc_title, status, started_at, log_file,
			pid, working_dir, last_heartbeat, agent_type, task_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		docID, e.DocTitle, string(e.Status), now, e.LogFile, e.PID, e.WorkingDir, now, e.AgentType, taskID)
	if err != nil {
		return classify("create-execution", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create-execution:last-insert-id", err)
	}
	e.ID = id
	e.StartedAt = now
	return nil
}

// GetExecution hydrates an execution by id.
func (s *SQLiteStorage) GetExecution(ctx context.Context, id int64) (*types.Execution, error) {
	row := s.db.QueryRowContext(ctx, executionSelectBase+` WHERE id = ?`, id)
	return scanExecutionRow(row)
}

const executionSelectBase = `
	SELECT id, doc_id, doc_title, status, started_at, completed_at, log_file,
		exit_code, pid, working_dir, last_heartbeat, agent_type, pr_url, task_id
	FROM executions`

func scanExecutionRow(row *sql.Row) (*types.Execution, error) {
	var e types.Execution
	var docID, taskID, exitCode, pid sql.NullInt64
	var completedAt, lastHeartbeat sql.NullTime
	var status string
	if err := row.Scan(&e.ID, &docID, &e.DocTitle, &status, &e.StartedAt, &completedAt,
		&e.LogFile, &exitCode, &pid, &e.WorkingDir, &lastHeartbeat, &e.AgentType, &e.PRURL, &taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, classify("scan-execution", err)
	}
	e.Status = types.ExecutionStatus(status)
	if docID.Valid {
		e.DocID = docID.Int64
		e.HasDocID = true
	}
	if taskID.Valid {
		e.TaskID = taskID.Int64
		e.HasTaskID = true
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		e.ExitCode = &v
	}
	if pid.Valid {
		v := int(pid.Int64)
		e.PID = &v
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	if lastHeartbeat.Valid {
		e.LastHeartbeat = &lastHeartbeat.Time
	}
	return &e, nil
}

// UpdateExecutionHeartbeat bumps last_heartbeat, used by the Execution
// Subsystem's periodic liveness ping (spec.md 4.6).
func (s *SQLiteStorage) UpdateExecutionHeartbeat(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET last_heartbeat = ? WHERE id = ? AND status = 'running'`,
		time.Now().UTC(), id)
	return classify("update-execution-heartbeat", err)
}

// CompleteExecution marks an execution completed, optionally attaching the
// document it produced.
func (s *SQLiteStorage) CompleteExecution(ctx context.Context, id int64, docID int64, hasDoc bool, exitCode int) error {
	var docArg any
	if hasDoc {
		docArg = docID
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = 'completed', completed_at = ?, exit_code = ?, doc_id = COALESCE(?, doc_id)
		WHERE id = ?`, time.Now().UTC(), exitCode, docArg, id)
	return classify("complete-execution", err)
}

// FailExecution marks an execution failed with a non-zero exit code.
func (s *SQLiteStorage) FailExecution(ctx context.Context, id int64, exitCode int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = 'failed', completed_at = ?, exit_code = ? WHERE id = ?`,
		time.Now().UTC(), exitCode, id)
	return classify("fail-execution", err)
}

// KillExecution marks an execution killed by user request.
func (s *SQLiteStorage) KillExecution(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = 'killed', completed_at = ? WHERE id = ? AND status = 'running'`,
		time.Now().UTC(), id)
	return classify("kill-execution", err)
}

// StaleExecutions returns running executions whose last heartbeat predates
// cutoff, candidates for the reaper (spec.md 4.6).
func (s *SQLiteStorage) StaleExecutions(ctx context.Context, cutoff time.Time) ([]*types.Execution, error) {
	rows, err := s.db.QueryContext(ctx, executionSelectBase+`
		WHERE status = 'running' AND (last_heartbeat IS NULL OR last_heartbeat < ?)`, cutoff)
	if err != nil {
		return nil, classify("stale-executions", err)
	}
	defer rows.Close()

	var out []*types.Execution
	for rows.Next() {
		e, err := scanExecutionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExecutionRows(rows *sql.Rows) (*types.Execution, error) {
	var e types.Execution
	var docID, taskID, exitCode, pid sql.NullInt64
	var completedAt, lastHeartbeat sql.NullTime
	var status string
	if err := rows.Scan(&e.ID, &docID, &e.DocTitle, &status, &e.StartedAt, &completedAt,
		&e.LogFile, &exitCode, &pid, &e.WorkingDir, &lastHeartbeat, &e.AgentType, &e.PRURL, &taskID); err != nil {
		return nil, classify("scan-execution-rows", err)
	}
	e.Status = types.ExecutionStatus(status)
	if docID.Valid {
		e.DocID = docID.Int64
		e.HasDocID = true
	}
	if taskID.Valid {
		e.TaskID = taskID.Int64
		e.HasTaskID = true
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		e.ExitCode = &v
	}
	if pid.Valid {
		v := int(pid.Int64)
		e.PID = &v
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	if lastHeartbeat.Valid {
		e.LastHeartbeat = &lastHeartbeat.Time
	}
	return &e, nil
}

// MarkStale flips a stale execution's status without touching its timestamps,
// leaving an audit trail distinct from a clean completion.
func (s *SQLiteStorage) MarkStale(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET status = 'stale' WHERE id = ? AND status = 'running'`, id)
	return classify("mark-stale", err)
}

// SetExecutionPRURL records the PR URL produced by a `--pr` delegate run
// (spec.md 4.6: "the resulting URL is parsed and written into the
// execution row").
func (s *SQLiteStorage) SetExecutionPRURL(ctx context.Context, id int64, url string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET pr_url = ? WHERE id = ?`, url, id)
	return classify("set-execution-pr-url", err)
}

// SetExecutionLogFile records the log file path once it's known, which is
// only after CreateExecution has assigned the row its id (the log file name
// is id-keyed).
func (s *SQLiteStorage) SetExecutionLogFile(ctx context.Context, id int64, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET log_file = ? WHERE id = ?`, path, id)
	return classify("set-execution-log-file", err)
}

// ListExecutions returns the most recent executions, newest first, used by
// `emdx status` and the stale reaper's caller to report on in-flight work.
func (s *SQLiteStorage) ListExecutions(ctx context.Context, limit int) ([]*types.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, executionSelectBase+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify("list-executions", err)
	}
	defer rows.Close()

	var out []*types.Execution
	for rows.Next() {
		e, err := scanExecutionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
