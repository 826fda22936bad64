package sqlite

import (
	"context"

	"github.com/emdx-dev/emdx/internal/types"
)

// ReplaceEntities atomically swaps a document's extracted entity set,
// mirroring ReplaceChunks: the enrichment pipeline re-extracts on every
// save/edit, so the old set is simply discarded (spec.md 4.4).
func (s *SQLiteStorage) ReplaceEntities(ctx context.Context, docID int64, entities []types.Entity) error {
	return replaceEntities(ctx, s.q(), docID, entities)
}

func replaceEntities(ctx context.Context, q queryer, docID int64, entities []types.Entity) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM entities WHERE doc_id = ?`, docID); err != nil {
		return classify("replace-entities:delete", err)
	}
	for _, e := range entities {
		_, err := q.ExecContext(ctx, `
			INSERT INTO entities (doc_id, name, entity_type) VALUES (?, ?, ?)`,
			docID, e.Name, e.EntityType)
		if err != nil {
			return classify("replace-entities:insert", err)
		}
	}
	return nil
}

// DocsSharingEntity returns the ids of other live documents that share at
// least one entity of the given types with docID, used by the
// entity-linking pass (spec.md 4.4: "any other document sharing >=1 entity
// of type heading or proper_noun").
func (s *SQLiteStorage) DocsSharingEntity(ctx context.Context, docID int64, entityTypes []string) ([]int64, error) {
	if len(entityTypes) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(entityTypes)*2)
	args := make([]any, 0, len(entityTypes)+2)
	args = append(args, docID)
	for i, t := range entityTypes {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, t)
	}
	args = append(args, docID)

	query := `
		SELECT DISTINCT other.doc_id
		FROM entities mine
		JOIN entities other ON other.name = mine.name AND other.entity_type = mine.entity_type
		JOIN documents d ON d.id = other.doc_id AND d.is_deleted = 0
		WHERE mine.doc_id = ? AND mine.entity_type IN (` + string(placeholders) + `) AND other.doc_id != ?`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("docs-sharing-entity", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify("docs-sharing-entity:scan", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
