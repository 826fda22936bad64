package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

// AddLink records a (source, target, kind) edge, rejecting self-links and
// treating an already-present edge as ErrDuplicateLink so callers in the
// enrichment pipeline can dedupe cheaply (spec.md 4.3's link() contract).
func (s *SQLiteStorage) AddLink(ctx context.Context, link *types.DocumentLink) error {
	return addLink(ctx, s.q(), link)
}
func (t *sqlTx) AddLink(ctx context.Context, link *types.DocumentLink) error {
	return addLink(ctx, t.q(), link)
}

func addLink(ctx context.Context, q queryer, link *types.DocumentLink) error {
	if link.SourceDocID == link.TargetDocID {
		return types.ErrSelfLink
	}
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		INSERT INTO document_links (source_doc_id, target_doc_id, kind, similarity_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_doc_id, target_doc_id, kind) DO NOTHING`,
		link.SourceDocID, link.TargetDocID, string(link.Kind), link.SimilarityScore, now)
	if err != nil {
		var serr *types.StorageError
		if errors.As(classify("add-link", err), &serr) && serr.Kind == types.KindForeignKeyViolation {
			return types.ErrNotFound
		}
		return classify("add-link", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("add-link:rows-affected", err)
	}
	if n == 0 {
		return types.ErrDuplicateLink
	}
	link.CreatedAt = now
	return nil
}

// LinksFrom returns every outgoing link from a document, used by `view` to
// show related documents.
func (s *SQLiteStorage) LinksFrom(ctx context.Context, docID int64) ([]*types.DocumentLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_doc_id, target_doc_id, kind, similarity_score, created_at
		FROM document_links WHERE source_doc_id = ? ORDER BY similarity_score DESC`, docID)
	if err != nil {
		return nil, classify("links-from", err)
	}
	defer rows.Close()

	var out []*types.DocumentLink
	for rows.Next() {
		var l types.DocumentLink
		var kind string
		if err := rows.Scan(&l.ID, &l.SourceDocID, &l.TargetDocID, &kind, &l.SimilarityScore, &l.CreatedAt); err != nil {
			return nil, classify("links-from:scan", err)
		}
		l.Kind = types.LinkKind(kind)
		out = append(out, &l)
	}
	return out, rows.Err()
}
