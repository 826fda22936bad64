package sqlite

import (
	"context"
	"database/sql"

	"github.com/emdx-dev/emdx/internal/types"
)

// AppendVersion records a new document_versions row. Callers compute
// CharacterDelta before calling; storage never diffs content itself.
func (s *SQLiteStorage) AppendVersion(ctx context.Context, v *types.DocumentVersion) error {
	return appendVersion(ctx, s.q(), v)
}
func (t *sqlTx) AppendVersion(ctx context.Context, v *types.DocumentVersion) error {
	return appendVersion(ctx, t.q(), v)
}

func appendVersion(ctx context.Context, q queryer, v *types.DocumentVersion) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO document_versions (doc_id, version_number, content_hash, character_delta, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(doc_id, version_number) DO NOTHING`,
		v.DocID, v.VersionNumber, v.ContentHash, v.CharacterDelta)
	if err != nil {
		return classify("append-version", err)
	}
	return nil
}

// AppendEvent writes one append-only audit row and returns its id, per the
// "every mutation writes exactly one KnowledgeEvent" invariant in spec.md 3.
func (s *SQLiteStorage) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	return appendEvent(ctx, s.q(), ev)
}
func (t *sqlTx) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	return appendEvent(ctx, t.q(), ev)
}

func appendEvent(ctx context.Context, q queryer, ev *types.KnowledgeEvent) (int64, error) {
	var docID any
	if ev.HasDocID {
		docID = ev.DocID
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO knowledge_events (event_type, doc_id, session_id, metadata, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		string(ev.EventType), docID, ev.SessionID, ev.Metadata)
	if err != nil {
		return 0, classify("append-event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify("append-event:last-insert-id", err)
	}
	ev.ID = id
	return id, nil
}

// RecentEvents returns the newest `limit` events for a document, newest
// first. Only the tests in this package call it.
func (s *SQLiteStorage) RecentEvents(ctx context.Context, docID int64, limit int) ([]*types.KnowledgeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, doc_id, session_id, metadata, created_at
		FROM knowledge_events WHERE doc_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, docID, limit)
	if err != nil {
		return nil, classify("recent-events", err)
	}
	defer rows.Close()

	var out []*types.KnowledgeEvent
	for rows.Next() {
		var ev types.KnowledgeEvent
		var eventType string
		var d sql.NullInt64
		if err := rows.Scan(&ev.ID, &eventType, &d, &ev.SessionID, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, classify("recent-events:scan", err)
		}
		ev.EventType = types.EventType(eventType)
		if d.Valid {
			ev.DocID = d.Int64
			ev.HasDocID = true
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
