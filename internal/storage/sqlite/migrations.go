package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/emdx-dev/emdx/internal/types"
)

// Migration pairs a stable string identifier with an idempotent apply
// function. Identifiers, not ordinals, are what's tracked as applied --
// two branches that each add a migration never collide on "N+1" (spec.md
// 4.2). Order of registration below decides apply order among what's still
// missing on a given database.
type Migration struct {
	ID    string
	Apply func(tx *sql.Tx) error
}

// registeredMigrations is the append-only ledger of schema changes made
// since baseSchema. Each Apply must be safe to run against a database that
// already has its effect (CREATE TABLE IF NOT EXISTS, guarded ALTER TABLE)
// because schema_migrations_applied itself can't be trusted across branch
// divergence until this very code has run once.
var registeredMigrations = []Migration{
	{"001_task_priority_default", migrateTaskPriorityDefault},
	{"002_execution_task_link_index", migrateExecutionTaskLinkIndex},
	{"003_document_project_index", migrateDocumentProjectIndex},
}

// RunMigrations applies every migration whose id is absent from
// schema_migrations_applied, in registration order, one transaction per
// migration. A failing migration rolls back and returns
// *types.MigrationFailed; the database is left exactly as it was before
// that migration's transaction began, and the next startup retries it.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations_applied (
		id TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations_applied: %w", err)
	}

	applied, err := appliedMigrationIDs(db)
	if err != nil {
		return err
	}

	for _, m := range registeredMigrations {
		if applied[m.ID] {
			continue
		}
		if err := applyOne(db, m); err != nil {
			return &types.MigrationFailed{ID: m.ID, Cause: err}
		}
	}
	return nil
}

func appliedMigrationIDs(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT id FROM schema_migrations_applied`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func applyOne(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations_applied (id) VALUES (?)`, m.ID); err != nil {
		return fmt.Errorf("record applied id: %w", err)
	}
	return tx.Commit()
}

// ListApplied returns the set of migration ids applied to db; the tests use
// it to assert invariant 7 (monotonically non-decreasing applied set across
// restarts).
func ListApplied(db *sql.DB) (map[string]bool, error) {
	return appliedMigrationIDs(db)
}
