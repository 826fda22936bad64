package sqlite

import "database/sql"

// migrateTaskPriorityDefault backfills any pre-existing rows created before
// the column carried a default (idempotent: UPDATE ... WHERE is a no-op on a
// database that never had such rows).
func migrateTaskPriorityDefault(tx *sql.Tx) error {
	_, err := tx.Exec(`UPDATE tasks SET priority = 2 WHERE priority IS NULL`)
	return err
}

// migrateExecutionTaskLinkIndex adds an index on executions(task_id) for
// looking up a task's executions. CREATE INDEX IF NOT EXISTS is naturally
// idempotent.
func migrateExecutionTaskLinkIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_executions_task ON executions(task_id)`)
	return err
}

// migrateDocumentProjectIndex speeds up project-scoped search filters.
func migrateDocumentProjectIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_project_created ON documents(project, created_at)`)
	return err
}
