// Package compact implements maintain_compact (spec.md 4.8): replacing a
// large or low-value document's content with an LLM-generated summary when
// that summary is materially shorter than the original.
package compact

import (
	"context"
	"fmt"
	"sync"

	"github.com/emdx-dev/emdx/internal/types"
)

const defaultConcurrency = 5

// Config controls a compaction run.
type Config struct {
	Concurrency int
	DryRun      bool
	Actor       string
}

// Compactor summarizes documents through a Summarizer and writes the
// result back through documentStore, exactly the narrow-interface shape
// the teacher's own compactor used for its issue store.
type Compactor struct {
	store      documentStore
	summarizer Summarizer
	config     *Config
}

type documentStore interface {
	GetDocument(ctx context.Context, id int64) (*types.Document, error)
	UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error)
	AppendVersion(ctx context.Context, v *types.DocumentVersion) error
	AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error)
}

// Summarizer produces a shorter version of a document's content.
type Summarizer interface {
	Summarize(ctx context.Context, doc *types.Document) (string, error)
}

// New builds a Compactor. summarizer may be nil only when config.DryRun is
// true (a dry run never calls it).
func New(store documentStore, summarizer Summarizer, config *Config) (*Compactor, error) {
	if config == nil {
		config = &Config{Concurrency: defaultConcurrency}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if summarizer == nil && !config.DryRun {
		return nil, fmt.Errorf("compact: summarizer required unless DryRun is set")
	}
	return &Compactor{store: store, summarizer: summarizer, config: config}, nil
}

// Result holds the outcome of compacting one document.
type Result struct {
	DocID         int64
	OriginalSize  int
	CompactedSize int
	Err           error
}

// CompactDocument summarizes a single document and, if the summary is
// shorter than the original, replaces its content through
// UpdateDocumentContent, then appends a version row (AppendVersion) and an
// edit event whose metadata gives the reason "compact". These are three
// separate store calls, not one transaction.
func (c *Compactor) CompactDocument(ctx context.Context, docID int64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := c.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	result := &Result{DocID: docID, OriginalSize: len(doc.Content)}

	if c.config.DryRun {
		return result, nil
	}

	summary, err := c.summarizer.Summarize(ctx, doc)
	if err != nil {
		return result, fmt.Errorf("summarize: %w", err)
	}
	result.CompactedSize = len(summary)

	if result.CompactedSize >= result.OriginalSize {
		return result, fmt.Errorf("compaction would grow document %d (%d -> %d bytes), keeping original",
			docID, result.OriginalSize, result.CompactedSize)
	}

	changed, err := c.store.UpdateDocumentContent(ctx, docID, summary)
	if err != nil {
		return result, fmt.Errorf("update document: %w", err)
	}
	if !changed {
		return result, nil
	}

	updated, err := c.store.GetDocument(ctx, docID)
	if err != nil {
		return result, fmt.Errorf("get document: %w", err)
	}
	if err := c.store.AppendVersion(ctx, &types.DocumentVersion{
		DocID: docID, VersionNumber: updated.CurrentVersionNumber, ContentHash: updated.ContentHash,
		CharacterDelta: result.CompactedSize - result.OriginalSize,
	}); err != nil {
		return result, fmt.Errorf("append version: %w", err)
	}

	if _, err := c.store.AppendEvent(ctx, &types.KnowledgeEvent{
		EventType: types.EventEdit,
		DocID:     docID,
		HasDocID:  true,
		Metadata:  fmt.Sprintf(`{"reason":"compact","saved_bytes":%d}`, result.OriginalSize-result.CompactedSize),
	}); err != nil {
		return result, fmt.Errorf("append event: %w", err)
	}

	return result, nil
}

// CompactBatch compacts every docID, fanning work out across
// config.Concurrency workers (the same bounded worker-pool shape the
// teacher's batch compactor uses).
func (c *Compactor) CompactBatch(ctx context.Context, docIDs []int64) []*Result {
	if len(docIDs) == 0 {
		return nil
	}

	workCh := make(chan int64, len(docIDs))
	resultCh := make(chan *Result, len(docIDs))

	var wg sync.WaitGroup
	for i := 0; i < c.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for docID := range workCh {
				result, err := c.CompactDocument(ctx, docID)
				if result == nil {
					result = &Result{DocID: docID}
				}
				if err != nil {
					result.Err = err
				}
				resultCh <- result
			}
		}()
	}

	for _, id := range docIDs {
		workCh <- id
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]*Result, 0, len(docIDs))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}
