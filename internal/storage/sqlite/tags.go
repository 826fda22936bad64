package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// canonicalTag trims whitespace and lowercases a raw tag string, per the Tag
// invariant in spec.md 3: tag names are canonical before any lookup.
func canonicalTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// AddTags normalizes names, creates any that don't exist yet, and links them
// to docID idempotently -- calling it twice with overlapping names never
// produces duplicate (document, tag) pairs.
func (s *SQLiteStorage) AddTags(ctx context.Context, docID int64, names []string) error {
	return addTags(ctx, s.q(), docID, names)
}
func (t *sqlTx) AddTags(ctx context.Context, docID int64, names []string) error {
	return addTags(ctx, t.q(), docID, names)
}

func addTags(ctx context.Context, q queryer, docID int64, names []string) error {
	if _, err := getDocument(ctx, q, docID); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, raw := range names {
		name := canonicalTag(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if _, err := q.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return classify("add-tags:insert-tag", err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO document_tags (doc_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?
			ON CONFLICT(doc_id, tag_id) DO NOTHING`, docID, name); err != nil {
			return classify("add-tags:link", err)
		}
	}
	return nil
}

// GetTags returns the canonical tag names attached to a document.
func (s *SQLiteStorage) GetTags(ctx context.Context, docID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.doc_id = ? ORDER BY t.name`, docID)
	if err != nil {
		return nil, classify("get-tags", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// GetSchemaFlag reports whether a one-time operation (e.g. first-run
// seeding) has already been marked applied.
func (s *SQLiteStorage) GetSchemaFlag(ctx context.Context, key string) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT applied_at FROM schema_flags WHERE key = ?`, key)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, classify("get-schema-flag", err)
	}
	return t, true, nil
}

// SetSchemaFlag marks a one-time operation applied; idempotent.
func (s *SQLiteStorage) SetSchemaFlag(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_flags (key, applied_at) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, time.Now().UTC())
	if err != nil {
		return classify("set-schema-flag", err)
	}
	return nil
}
