// Package enrich implements the post-write passes that enhance a newly
// saved or edited document: title-match linking, entity extraction and
// entity linking, and semantic linking over chunk embeddings (spec.md 4.4).
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/emdx-dev/emdx/internal/embed"
	"github.com/emdx-dev/emdx/internal/extractor"
	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// queueCapacity is the bounded async enrichment queue's capacity (spec.md
// §9's backpressure policy: "default 256").
const queueCapacity = 256

// Pipeline runs the three enrichment layers over a document, synchronously
// for small documents and via a single background worker otherwise.
type Pipeline struct {
	store     storage.Storage
	extractor *extractor.Pipeline
	embedder  embed.Embedder
	threshold float64
	logger    *zap.Logger

	queue     chan *types.Document
	startOnce sync.Once
	inflight  sync.Map // docID -> struct{}, the no-reentry guard from spec.md §9
}

// New builds a Pipeline. embedder may be nil, in which case semantic
// linking is skipped entirely (spec.md 4.4: "only run when embeddings
// backend is available").
func New(store storage.Storage, embedder embed.Embedder, threshold float64, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor.NewPipeline(),
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
		queue:     make(chan *types.Document, queueCapacity),
	}
}

// Start launches the single background worker that drains the async queue.
// It is idempotent; later calls are no-ops.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.drain(ctx)
	})
}

func (p *Pipeline) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case doc := <-p.queue:
			p.run(context.Background(), doc)
		}
	}
}

// Enrich schedules doc for enrichment: synchronously if it is small,
// asynchronously (via the bounded queue) otherwise (spec.md 4.4's
// scheduling model). A small doc is enriched before Enrich returns; a large
// one never blocks the caller, even on a full queue. It never returns an
// error -- enrichment failures are logged, not propagated (spec.md 4.4's
// contract).
func (p *Pipeline) Enrich(ctx context.Context, doc *types.Document) {
	if isSmallDoc(doc.Content) {
		p.run(ctx, doc)
		return
	}
	p.enqueue(ctx, doc)
}

// RunSync runs every layer for doc and blocks until they finish, used by
// `maintain link`/`maintain index` to backfill links and embeddings for
// every live document regardless of size (the size-based sync/async split
// in Enrich only applies to the save/edit-triggered path).
func (p *Pipeline) RunSync(ctx context.Context, doc *types.Document) {
	p.run(ctx, doc)
}

func (p *Pipeline) enqueue(ctx context.Context, doc *types.Document) {
	select {
	case p.queue <- doc:
		return
	default:
	}

	// Queue full: drop the oldest pending entry and emit a warning event,
	// then retry once for the new entry (spec.md §9's overflow policy).
	select {
	case old := <-p.queue:
		p.logger.Warn("enrichment queue overflow, dropping oldest entry",
			zap.Int64("dropped_doc_id", old.ID), zap.Int64("doc_id", doc.ID))
		p.recordWarning(ctx, old.ID, "enrichment queue overflow: dropped before enrichment ran")
	default:
	}

	select {
	case p.queue <- doc:
	default:
		p.logger.Warn("enrichment queue still full after eviction, dropping new entry", zap.Int64("doc_id", doc.ID))
		p.recordWarning(ctx, doc.ID, "enrichment queue overflow: new entry dropped")
	}
}

// run executes all three layers in order. Each layer is retried a few
// times with a short backoff; a layer that still fails is logged and
// skipped, never surfaced to the save/edit caller (spec.md 4.4's
// retry-safe contract). The inflight guard prevents a document from being
// enriched twice concurrently, which is the only reentry spec.md §9 worries
// about in practice (enrichment never calls save/edit itself).
func (p *Pipeline) run(ctx context.Context, doc *types.Document) {
	if _, already := p.inflight.LoadOrStore(doc.ID, struct{}{}); already {
		return
	}
	defer p.inflight.Delete(doc.ID)

	p.runLayer(ctx, doc, "title_match", p.titleMatchLink)
	p.runLayer(ctx, doc, "entity_link", p.entityLink)
	if p.embedder != nil {
		p.runLayer(ctx, doc, "semantic_link", p.semanticLink)
	}
}

func (p *Pipeline) runLayer(ctx context.Context, doc *types.Document, name string, fn func(context.Context, *types.Document) error) {
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), uint64(2))
	err := backoff.Retry(func() error {
		return fn(ctx, doc)
	}, bo)
	if err != nil {
		p.logger.Warn("enrichment layer failed, save still succeeded",
			zap.String("layer", name), zap.Int64("doc_id", doc.ID), zap.Error(err))
		p.recordWarning(ctx, doc.ID, "enrichment layer "+name+" failed: "+err.Error())
	}
}

func (p *Pipeline) recordWarning(ctx context.Context, docID int64, message string) {
	_, _ = p.store.AppendEvent(ctx, &types.KnowledgeEvent{
		EventType: types.EventWarning,
		DocID:     docID,
		HasDocID:  true,
		Metadata:  message,
	})
}
