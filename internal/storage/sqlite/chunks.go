package sqlite

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/emdx-dev/emdx/internal/types"
)

// encodeEmbedding packs a float32 vector into a little-endian byte blob so it
// round-trips through SQLite without a JSON detour; decodeEmbedding turns it
// back into a vector in AllChunks, whose callers run the brute-force cosine
// scan (spec.md 4.4's semantic linking).
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// ReplaceChunks atomically swaps a document's chunk set, used whenever
// content changes and the enrichment pipeline re-chunks and re-embeds it.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	return replaceChunks(ctx, s.q(), docID, chunks)
}
func (t *sqlTx) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	return replaceChunks(ctx, t.q(), docID, chunks)
}

func replaceChunks(ctx context.Context, q queryer, docID int64, chunks []types.Chunk) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return classify("replace-chunks:delete", err)
	}
	for _, c := range chunks {
		_, err := q.ExecContext(ctx, `
			INSERT INTO chunks (doc_id, chunk_index, text, embedding, token_count)
			VALUES (?, ?, ?, ?, ?)`,
			docID, c.ChunkIndex, c.Text, encodeEmbedding(c.Embedding), c.TokenCount)
		if err != nil {
			return classify("replace-chunks:insert", err)
		}
	}
	return nil
}

// AllChunks loads every chunk in the store for the semantic-linking pass's
// in-memory cosine scan (spec.md 9's deferred-ANN-index decision).
func (s *SQLiteStorage) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, chunk_index, text, embedding, token_count
		FROM chunks c WHERE EXISTS (SELECT 1 FROM documents d WHERE d.id = c.doc_id AND d.is_deleted = 0)`)
	if err != nil {
		return nil, classify("all-chunks", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var embedding []byte
		if err := rows.Scan(&c.DocID, &c.ChunkIndex, &c.Text, &embedding, &c.TokenCount); err != nil {
			return nil, classify("all-chunks:scan", err)
		}
		c.Embedding = decodeEmbedding(embedding)
		out = append(out, c)
	}
	return out, rows.Err()
}
