package enrich

import (
	"strings"

	"github.com/emdx-dev/emdx/internal/types"
)

const (
	chunkTokens      = 512
	chunkOverlap     = 64
	smallDocMaxBytes = 2048
)

// splitChunks breaks text into overlapping windows of roughly chunkTokens
// whitespace-delimited tokens with chunkOverlap tokens shared between
// consecutive windows (spec.md 4.4's "~512 tokens, 64-token overlap").
func splitChunks(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) <= chunkTokens {
		return []string{strings.Join(tokens, " ")}
	}

	stride := chunkTokens - chunkOverlap
	var chunks []string
	for start := 0; start < len(tokens); start += stride {
		end := start + chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// buildChunks splits content and fills in everything but the embedding,
// which the caller attaches once an Embedder is available.
func buildChunks(docID int64, content string) []types.Chunk {
	texts := splitChunks(content)
	chunks := make([]types.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = types.Chunk{
			DocID:      docID,
			ChunkIndex: i,
			Text:       t,
			TokenCount: len(strings.Fields(t)),
		}
	}
	return chunks
}

// isSmallDoc reports whether content qualifies for synchronous enrichment
// (spec.md 4.4: "< ~2KB").
func isSmallDoc(content string) bool {
	return len(content) < smallDocMaxBytes
}
