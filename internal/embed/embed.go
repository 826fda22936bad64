// Package embed satisfies spec.md's opaque `embed(text) -> Vec<f32>`
// collaborator. It defines the interface the enrichment and search
// pipelines depend on, plus a deterministic fallback so the rest of the
// system works end to end with no external embedding service configured.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns text into a fixed-length vector. Callers treat the vector
// as opaque; only its cosine similarity to other vectors from the same
// Embedder is meaningful.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// HashingEmbedder is a dependency-free stand-in for a real embedding
// backend: each token is hashed into a bucket of the output vector and the
// result is L2-normalised, giving a stable, cheap bag-of-words vector whose
// cosine similarity still correlates with shared vocabulary. It exists so
// `maintain index` and the semantic-linking pass have something to call
// when no external embedding process is configured (spec.md 9's deferred
// real-model decision); production deployments are expected to replace it
// with a process-backed Embedder the same way internal/llm shells out for
// the opaque LLM collaborator.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder builds a HashingEmbedder producing vectors of length
// dim (spec.md 6's embedding_dim, default 384).
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashingEmbedder{dim: dim}
}

// Dim reports the fixed output length.
func (h *HashingEmbedder) Dim() int { return h.dim }

// Embed tokenises text on non-letter/non-digit boundaries, hashes each
// token into a bucket with FNV-1a, and L2-normalises the result.
func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		bucket := int(hasher.Sum32()) % h.dim
		if bucket < 0 {
			bucket += h.dim
		}
		v[bucket]++
	}
	normalize(v)
	return v, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// Cosine returns the cosine similarity of two equal-length vectors, used by
// internal/search's semantic ranking and internal/enrich's semantic-linking
// threshold check (spec.md 4.4, 4.5).
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
