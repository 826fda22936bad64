// Package search implements the hybrid search pipeline (spec.md 4.5):
// full-text keyword search fused with chunk-level semantic search via
// Reciprocal Rank Fusion, plus the `--recent`, `--similar`, `--ask`, and
// `--wander` query variants.
package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/emdx-dev/emdx/internal/embed"
	"github.com/emdx-dev/emdx/internal/llm"
	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// Request describes one search call.
type Request struct {
	Query  string
	Mode   types.SearchMode
	Filter types.SearchFilter
	Limit  int
	Offset int
}

// Result is one ranked document, carrying its component scores for
// observability (spec.md 4.5 step 4).
type Result struct {
	Doc           *types.Document
	RRFScore      float64
	KeywordScore  float64 // normalised bm25, higher is better
	SemanticScore float64 // cosine similarity, [-1, 1]
	HasKeyword    bool
	HasSemantic   bool
}

// Engine runs searches against a Storage backend, embedding queries with
// Embedder when the mode calls for semantic ranking.
type Engine struct {
	store    storage.Storage
	embedder embed.Embedder
	rrfK     int
}

// New builds an Engine. rrfK is spec.md 4.5 step 4's k constant (config
// default 60).
func New(store storage.Storage, embedder embed.Embedder, rrfK int) *Engine {
	if rrfK <= 0 {
		rrfK = 60
	}
	return &Engine{store: store, embedder: embedder, rrfK: rrfK}
}

const overfetchFactor = 4

// Search resolves req into a ranked, filtered, paginated document list.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	mode := req.Mode
	if mode == "" {
		mode = types.ModeHybrid
	}
	fetchLimit := (req.Limit + req.Offset) * overfetchFactor
	if fetchLimit < 50 {
		fetchLimit = 50
	}

	var keywordRanks, semanticRanks map[int64]int
	scores := map[int64]*Result{}

	if mode == types.ModeKeyword || mode == types.ModeHybrid {
		hits, err := e.store.SearchFTS(ctx, req.Query, fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		keywordRanks = map[int64]int{}
		normalizeBM25(hits)
		// Rank by normalised score, best first; equal scores keep the
		// store's order.
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].BM25Score > hits[j].BM25Score })
		for i, h := range hits {
			keywordRanks[h.DocID] = i + 1
			scores[h.DocID] = &Result{KeywordScore: h.BM25Score, HasKeyword: true}
		}
	}

	if mode == types.ModeSemantic || mode == types.ModeHybrid {
		if e.embedder == nil {
			if mode == types.ModeSemantic {
				return nil, fmt.Errorf("semantic search requires an embedding backend")
			}
		} else {
			queryVec, err := e.embedder.Embed(ctx, req.Query)
			if err != nil {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			hits, err := e.semanticRank(ctx, queryVec, fetchLimit)
			if err != nil {
				return nil, err
			}
			semanticRanks = map[int64]int{}
			for i, h := range hits {
				semanticRanks[h.docID] = i + 1
				r, ok := scores[h.docID]
				if !ok {
					r = &Result{}
					scores[h.docID] = r
				}
				r.SemanticScore = h.score
				r.HasSemantic = true
			}
		}
	}

	for docID, r := range scores {
		r.RRFScore = rrfScore(e.rrfK, keywordRanks[docID], semanticRanks[docID])
	}

	results := make([]Result, 0, len(scores))
	for docID, r := range scores {
		doc, err := e.store.GetDocument(ctx, docID)
		if err != nil {
			continue // deleted between rank and fetch; drop silently
		}
		if !passesFilter(doc, req.Filter, e.store, ctx) {
			continue
		}
		r.Doc = doc
		results = append(results, *r)
	}

	sortResults(results)

	if req.Offset >= len(results) {
		return nil, nil
	}
	end := req.Offset + req.Limit
	if end > len(results) {
		end = len(results)
	}
	return results[req.Offset:end], nil
}

type semanticHit struct {
	docID int64
	score float64
}

// semanticRank embeds and scans every stored chunk, aggregating per
// document by max-of-chunk cosine similarity (spec.md 4.5 step 3), and
// returns the top `limit` documents ranked descending.
func (e *Engine) semanticRank(ctx context.Context, queryVec []float32, limit int) ([]semanticHit, error) {
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	best := map[int64]float64{}
	for _, c := range chunks {
		sim := embed.Cosine(queryVec, c.Embedding)
		if cur, ok := best[c.DocID]; !ok || sim > cur {
			best[c.DocID] = sim
		}
	}
	hits := make([]semanticHit, 0, len(best))
	for docID, score := range best {
		hits = append(hits, semanticHit{docID: docID, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].docID < hits[j].docID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// rrfScore implements spec.md 4.5 step 4: rrf(d) = sum 1/(k + rank_i(d))
// over every ranking the document appears in (rank 0 means "absent").
func rrfScore(k int, keywordRank, semanticRank int) float64 {
	var score float64
	if keywordRank > 0 {
		score += 1.0 / float64(k+keywordRank)
	}
	if semanticRank > 0 {
		score += 1.0 / float64(k+semanticRank)
	}
	return score
}

// normalizeBM25 min-max normalises bm25 scores onto [0, 1], flipping sign
// so that, after normalisation, higher is better (SQLite's bm25() returns
// lower-is-better weights).
func normalizeBM25(hits []storage.FTSHit) {
	if len(hits) == 0 {
		return
	}
	min, max := hits[0].BM25Score, hits[0].BM25Score
	for _, h := range hits {
		if h.BM25Score < min {
			min = h.BM25Score
		}
		if h.BM25Score > max {
			max = h.BM25Score
		}
	}
	span := max - min
	for i := range hits {
		if span == 0 {
			hits[i].BM25Score = 1
			continue
		}
		// Invert: the best (lowest) bm25 score maps to 1.0.
		hits[i].BM25Score = 1 - (hits[i].BM25Score-min)/span
	}
}

// sortResults applies the tie-break chain from spec.md 4.5: higher RRF,
// then higher semantic score, then higher keyword score, then newer
// updated_at, then smaller id.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		if a.KeywordScore != b.KeywordScore {
			return a.KeywordScore > b.KeywordScore
		}
		if !a.Doc.UpdatedAt.Equal(b.Doc.UpdatedAt) {
			return a.Doc.UpdatedAt.After(b.Doc.UpdatedAt)
		}
		return a.Doc.ID < b.Doc.ID
	})
}

func passesFilter(doc *types.Document, f types.SearchFilter, store storage.Storage, ctx context.Context) bool {
	if doc.DocType == types.DocTypeQA && !f.IncludeQA {
		return false
	}
	if f.HasDocType && doc.DocType != f.DocType {
		return false
	}
	if f.Project != "" && doc.Project != f.Project {
		return false
	}
	if f.CreatedAfter != nil && doc.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && doc.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.ModifiedAfter != nil && doc.UpdatedAt.Before(*f.ModifiedAfter) {
		return false
	}
	if f.ModifiedBefore != nil && doc.UpdatedAt.After(*f.ModifiedBefore) {
		return false
	}
	if len(f.Tags) > 0 {
		tags, err := store.GetTags(ctx, doc.ID)
		if err != nil {
			return false
		}
		have := map[string]bool{}
		for _, t := range tags {
			have[t] = true
		}
		for _, tf := range f.Tags {
			if !matchesTagFilter(have, tf) {
				return false
			}
		}
	}
	return true
}

func matchesTagFilter(have map[string]bool, tf types.TagFilter) bool {
	switch tf.Mode {
	case types.TagFilterAND:
		for _, t := range tf.Tags {
			if !have[t] {
				return false
			}
		}
		return true
	case types.TagFilterOR:
		for _, t := range tf.Tags {
			if have[t] {
				return true
			}
		}
		return len(tf.Tags) == 0
	case types.TagFilterNOT:
		for _, t := range tf.Tags {
			if have[t] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Recent returns the newest n live documents, skipping ranking entirely
// (spec.md 4.5's `--recent N` variant).
func (e *Engine) Recent(ctx context.Context, n int) ([]*types.Document, error) {
	return e.store.ListLiveDocuments(ctx, n)
}

// Similar reuses docID's own chunk embeddings (averaged) as the query
// vector and runs a semantic-only search, excluding the source document
// (spec.md 4.5's `--similar to=ID` variant).
func (e *Engine) Similar(ctx context.Context, docID int64, limit int) ([]Result, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("similar search requires an embedding backend")
	}
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	var vec []float32
	var n int
	for _, c := range chunks {
		if c.DocID != docID {
			continue
		}
		if vec == nil {
			vec = make([]float32, len(c.Embedding))
		}
		for i, f := range c.Embedding {
			vec[i] += f
		}
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("document %d has no chunks to compare against", docID)
	}
	for i := range vec {
		vec[i] /= float32(n)
	}

	hits, err := e.semanticRank(ctx, vec, limit+1)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.docID == docID {
			continue
		}
		doc, err := e.store.GetDocument(ctx, h.docID)
		if err != nil {
			continue
		}
		results = append(results, Result{Doc: doc, SemanticScore: h.score, HasSemantic: true})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// QAResult is the answer produced by the `--ask` variant, carrying the
// source documents whose chunks were fed to the LLM as context.
type QAResult struct {
	Answer       string
	SourceDocIDs []int64
}

// Ask ranks the question normally, passes the title and full content of
// the top-K resulting documents as context to invoker, and returns the answer with
// its source document ids (spec.md 4.5's `--ask question` variant).
func (e *Engine) Ask(ctx context.Context, question string, invoker *llm.Invoker, topK int) (*QAResult, error) {
	results, err := e.Search(ctx, Request{Query: question, Mode: types.ModeHybrid, Limit: topK})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &QAResult{Answer: "No relevant documents found."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Answer the question using only the context below.\n\nQuestion: %s\n\n", question)
	sourceIDs := make([]int64, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "---\nTitle: %s\n%s\n", r.Doc.Title, r.Doc.Content)
		sourceIDs = append(sourceIDs, r.Doc.ID)
	}

	answer, err := invoker.Invoke(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	return &QAResult{Answer: answer, SourceDocIDs: sourceIDs}, nil
}

// Wander ranks normally, then randomly samples k results from the top 3k
// (spec.md 4.5's `--wander` variant), for serendipitous discovery.
func (e *Engine) Wander(ctx context.Context, req Request, k int) ([]Result, error) {
	req.Limit = k * 3
	req.Offset = 0
	pool, err := e.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(pool) <= k {
		return pool, nil
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:k], nil
}
