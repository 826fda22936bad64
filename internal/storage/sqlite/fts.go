package sqlite

import (
	"context"
	"strings"

	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// quoteFTSQuery wraps every whitespace-separated term in double quotes so
// FTS5 treats user input as a literal phrase search rather than parsing
// operators like AND/OR/NOT/NEAR or column filters out of raw query text,
// mirroring the teacher's "never hand a raw query straight to MATCH" rule.
func quoteFTSQuery(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// SearchFTS runs a bm25-ranked MATCH against documents_fts, joining back to
// documents only to filter soft-deleted rows -- documents_fts itself is
// never scanned for columns, only matched (spec.md 4.1).
func (s *SQLiteStorage) SearchFTS(ctx context.Context, query string, limit int) ([]storage.FTSHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	matchQuery := quoteFTSQuery(query)

	rows, err := s.db.QueryContext(ctx, `
		SELECT documents_fts.rowid, bm25(documents_fts, 3.0, 2.0, 1.0) AS score
		FROM documents_fts
		JOIN documents ON documents.id = documents_fts.rowid
		WHERE documents_fts MATCH ? AND documents.is_deleted = 0
		ORDER BY score
		LIMIT ?`, matchQuery, limit)
	if err != nil {
		return nil, classify("search-fts", err)
	}
	defer rows.Close()

	var out []storage.FTSHit
	for rows.Next() {
		var hit storage.FTSHit
		if err := rows.Scan(&hit.DocID, &hit.BM25Score); err != nil {
			return nil, classify("search-fts:scan", err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}
