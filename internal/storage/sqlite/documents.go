package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CreateDocument inserts a new live document with current_version_number 1.
// It writes no document_versions row: the caller (internal/facade) appends
// the version #1 row and the knowledge_events "save" row within the same
// RunInTransaction call, and dispatches enrichment, per spec.md 4.3's save()
// contract.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *types.Document) error {
	return createDocument(ctx, s.q(), doc)
}
func (t *sqlTx) CreateDocument(ctx context.Context, doc *types.Document) error {
	return createDocument(ctx, t.q(), doc)
}

func createDocument(ctx context.Context, q queryer, doc *types.Document) error {
	if doc.Title == "" {
		return types.ErrInvalidTitle
	}
	now := time.Now().UTC()
	doc.ContentHash = contentHash(doc.Content)
	doc.CurrentVersionNumber = 1
	if doc.DocType == "" {
		doc.DocType = types.DocTypeUser
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO documents (title, content, project, content_hash, doc_type,
			current_version_number, created_at, updated_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Title, doc.Content, doc.Project, doc.ContentHash, string(doc.DocType),
		doc.CurrentVersionNumber, now, now, now)
	if err != nil {
		return classify("create-document", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create-document:last-insert-id", err)
	}
	doc.ID = id
	doc.CreatedAt, doc.UpdatedAt, doc.AccessedAt = now, now, now
	return nil
}

// GetDocument hydrates a single live-or-deleted document by id.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	return getDocument(ctx, s.q(), id)
}
func (t *sqlTx) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	return getDocument(ctx, t.q(), id)
}

func getDocument(ctx context.Context, q queryer, id int64) (*types.Document, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, content, project, content_hash, doc_type,
			current_version_number, access_count, is_deleted, deleted_at,
			created_at, updated_at, accessed_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*types.Document, error) {
	var d types.Document
	var deletedAt sql.NullTime
	var isDeleted int
	var docType string
	if err := row.Scan(&d.ID, &d.Title, &d.Content, &d.Project, &d.ContentHash, &docType,
		&d.CurrentVersionNumber, &d.AccessCount, &isDeleted, &deletedAt,
		&d.CreatedAt, &d.UpdatedAt, &d.AccessedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, classify("get-document:scan", err)
	}
	d.DocType = types.DocType(docType)
	d.IsDeleted = isDeleted != 0
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	return &d, nil
}

// TouchAccess increments access_count and bumps accessed_at, per view()'s
// guarantee in spec.md 4.8.
func (s *SQLiteStorage) TouchAccess(ctx context.Context, id int64) error {
	return withRetry(ctx, "touch-access", func() error {
		return touchAccess(ctx, s.q(), id)
	})
}
func (t *sqlTx) TouchAccess(ctx context.Context, id int64) error {
	return touchAccess(ctx, t.q(), id)
}

func touchAccess(ctx context.Context, q queryer, id int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE documents SET access_count = access_count + 1, accessed_at = ?
		WHERE id = ? AND is_deleted = 0`, time.Now().UTC(), id)
	return err
}

// UpdateDocumentContent bumps content_hash/version iff the hash actually
// changed, and is a no-op (including no updated_at bump) otherwise, per the
// update_content() contract in spec.md 4.3.
func (s *SQLiteStorage) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	return updateDocumentContent(ctx, s.q(), id, content)
}
func (t *sqlTx) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	return updateDocumentContent(ctx, t.q(), id, content)
}

func updateDocumentContent(ctx context.Context, q queryer, id int64, content string) (bool, error) {
	doc, err := getDocument(ctx, q, id)
	if err != nil {
		return false, err
	}
	if doc.IsDeleted {
		return false, types.ErrSoftDeleted
	}
	newHash := contentHash(content)
	if newHash == doc.ContentHash {
		return false, nil
	}
	now := time.Now().UTC()
	newVersion := doc.CurrentVersionNumber + 1
	_, err = q.ExecContext(ctx, `
		UPDATE documents SET content = ?, content_hash = ?, current_version_number = ?, updated_at = ?
		WHERE id = ?`, content, newHash, newVersion, now, id)
	if err != nil {
		return false, classify("update-document-content", err)
	}
	return true, nil
}

// SoftDeleteDocument marks a live document deleted, removing it from search
// visibility per the Document invariant in spec.md 3.
func (s *SQLiteStorage) SoftDeleteDocument(ctx context.Context, id int64) error {
	return softDeleteDocument(ctx, s.q(), id)
}
func (t *sqlTx) SoftDeleteDocument(ctx context.Context, id int64) error {
	return softDeleteDocument(ctx, t.q(), id)
}

func softDeleteDocument(ctx context.Context, q queryer, id int64) error {
	doc, err := getDocument(ctx, q, id)
	if err != nil {
		return err
	}
	if doc.IsDeleted {
		return types.ErrAlreadyDeleted
	}
	_, err = q.ExecContext(ctx, `UPDATE documents SET is_deleted = 1, deleted_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return classify("soft-delete-document", err)
	}
	return nil
}

// RestoreDocument reverses a soft delete.
func (s *SQLiteStorage) RestoreDocument(ctx context.Context, id int64) error {
	return restoreDocument(ctx, s.q(), id)
}
func (t *sqlTx) RestoreDocument(ctx context.Context, id int64) error {
	return restoreDocument(ctx, t.q(), id)
}

func restoreDocument(ctx context.Context, q queryer, id int64) error {
	doc, err := getDocument(ctx, q, id)
	if err != nil {
		return err
	}
	if !doc.IsDeleted {
		return types.ErrNotDeleted
	}
	_, err = q.ExecContext(ctx, `UPDATE documents SET is_deleted = 0, deleted_at = NULL WHERE id = ?`, id)
	if err != nil {
		return classify("restore-document", err)
	}
	return nil
}

// PurgeTrash permanently deletes documents whose deleted_at predates cutoff.
func (s *SQLiteStorage) PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE is_deleted = 1 AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, classify("purge-trash", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListLiveDocuments returns the newest `limit` live documents, used by
// find's --recent variant (spec.md 4.5).
func (s *SQLiteStorage) ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, project, content_hash, doc_type,
			current_version_number, access_count, is_deleted, deleted_at,
			created_at, updated_at, accessed_at
		FROM documents WHERE is_deleted = 0 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify("list-live-documents", err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocumentRows(rows *sql.Rows) (*types.Document, error) {
	var d types.Document
	var deletedAt sql.NullTime
	var isDeleted int
	var docType string
	if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Project, &d.ContentHash, &docType,
		&d.CurrentVersionNumber, &d.AccessCount, &isDeleted, &deletedAt,
		&d.CreatedAt, &d.UpdatedAt, &d.AccessedAt); err != nil {
		return nil, classify("scan-document-rows", err)
	}
	d.DocType = types.DocType(docType)
	d.IsDeleted = isDeleted != 0
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	return &d, nil
}

// ListAllTitles supports the enrichment pipeline's title-match linking pass,
// which needs every other live document's title to scan new content for
// exact occurrences (spec.md 4.4).
func (s *SQLiteStorage) ListAllTitles(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM documents WHERE is_deleted = 0`)
	if err != nil {
		return nil, classify("list-all-titles", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	return out, rows.Err()
}
