// Package facade implements the Command Facade (spec.md 4.8): the stable,
// terminal-I/O-free operation interface consumed by the CLI and (out of
// scope here) a TUI. Every operation is a pure input/output function over
// the Data Model, Search Pipeline, and Execution Subsystem -- nothing in
// this package writes to stdout/stderr or reads from stdin.
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emdx-dev/emdx/internal/enrich"
	"github.com/emdx-dev/emdx/internal/execution"
	"github.com/emdx-dev/emdx/internal/hooks"
	"github.com/emdx-dev/emdx/internal/llm"
	"github.com/emdx-dev/emdx/internal/search"
	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/task"
	"github.com/emdx-dev/emdx/internal/types"
)

// Facade wires together the Data Model Layer, Enrichment Pipeline, Search
// Pipeline, Task/Workflow Model, and Execution Subsystem behind the
// operation set spec.md 4.8 names. CLI and TUI frontends hold exactly one
// of these and never touch internal/storage or internal/search directly.
type Facade struct {
	Store     storage.Storage
	Search    *search.Engine
	Tasks     *task.Service
	Enrich    *enrich.Pipeline
	Hooks     *hooks.Runner
	Runner    *execution.Runner
	Collector *execution.Collector
	Logger    *zap.Logger
	Invoker   *llm.Invoker // opaque LLM collaborator, used by Ask/compact/wiki callers; may be nil
	SessionID string       // stamped on every knowledge_events row this process writes
}

// New assembles a Facade from its already-constructed collaborators. Each
// field may be nil except Store; callers that don't need executions or
// hooks (e.g. a one-off `emdx find` invocation) can leave those unset.
func New(store storage.Storage, searchEngine *search.Engine, tasks *task.Service, enrichPipeline *enrich.Pipeline, hookRunner *hooks.Runner, runner *execution.Runner, collector *execution.Collector, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Facade{
		Store:     store,
		Search:    searchEngine,
		Tasks:     tasks,
		Enrich:    enrichPipeline,
		Hooks:     hookRunner,
		Runner:    runner,
		Collector: collector,
		Logger:    logger,
		SessionID: uuid.NewString(),
	}
}

// Source describes where save() should read content from (spec.md 4.8's
// SaveArgs.source sum type).
type Source struct {
	Kind SourceKind
	Text string // valid when Kind == SourceText; already-read file/stdin content otherwise
}

// SourceKind discriminates Source.
type SourceKind string

const (
	SourceFile  SourceKind = "file"  // content already read from disk by the caller
	SourceStdin SourceKind = "stdin" // content already drained from stdin by the caller
	SourceText  SourceKind = "text"  // content supplied inline
)

// SaveArgs configures a save() call (spec.md 4.8).
type SaveArgs struct {
	Source   Source
	Title    string
	Tags     []string
	Project  string
	DocType  types.DocType
	AutoLink bool // when false, the enrichment pipeline is not dispatched
}

// SavedDoc is save()'s return value.
type SavedDoc struct {
	Doc *types.Document
}

// Save persists a new document: inserts the row, bumps the version,
// records a `save` knowledge event in the same transaction, fires the
// on_save hook, and -- unless AutoLink is false -- dispatches the
// enrichment pipeline (spec.md 4.3's save() contract, 4.4's "triggered
// only by user-facing save/edit" rule).
func (f *Facade) Save(ctx context.Context, args SaveArgs) (*SavedDoc, error) {
	if args.Title == "" {
		return nil, types.ErrInvalidTitle
	}
	docType := args.DocType
	if docType == "" {
		docType = types.DocTypeUser
	}

	doc := &types.Document{
		Title:   args.Title,
		Content: args.Source.Text,
		Project: args.Project,
		DocType: docType,
	}

	err := f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}
		if len(args.Tags) > 0 {
			if err := tx.AddTags(ctx, doc.ID, args.Tags); err != nil {
				return err
			}
		}
		if err := tx.AppendVersion(ctx, &types.DocumentVersion{
			DocID: doc.ID, VersionNumber: 1, ContentHash: doc.ContentHash, CharacterDelta: len(doc.Content),
		}); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventSave, DocID: doc.ID, HasDocID: true, SessionID: f.SessionID})
		return err
	})
	if err != nil {
		return nil, err
	}

	if f.Hooks != nil {
		f.Hooks.Run(hooks.EventSave, doc)
	}
	if args.AutoLink && f.Enrich != nil {
		f.Enrich.Enrich(ctx, doc)
	}
	return &SavedDoc{Doc: doc}, nil
}

// SaveAgentOutput satisfies execution.SaveFunc: it is the narrow slice of
// Save the Execution Subsystem's collect() needs (spec.md 4.6), always with
// auto-linking on and doc_type=user so a saved agent transcript is
// searchable exactly like a manually-saved document.
func (f *Facade) SaveAgentOutput(ctx context.Context, title, content string, tags []string, taskID int64, hasTaskID bool) (*types.Document, error) {
	saved, err := f.Save(ctx, SaveArgs{
		Source:   Source{Kind: SourceText, Text: content},
		Title:    title,
		Tags:     tags,
		DocType:  types.DocTypeUser,
		AutoLink: true,
	})
	if err != nil {
		return nil, err
	}
	_ = hasTaskID // taskID linkage is recorded on the execution row by the caller, not the document
	_ = taskID
	return saved.Doc, nil
}

// Edit updates a live document's content, bumping its version and
// content_hash iff the hash actually changed, per update_content()'s
// no-op-when-unchanged contract (spec.md 4.3). AutoLink re-runs enrichment
// against the new content when the content did change.
func (f *Facade) Edit(ctx context.Context, id int64, newContent string, autoLink bool) (*types.Document, error) {
	var changed bool
	err := f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		before, err := tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		changed, err = tx.UpdateDocumentContent(ctx, id, newContent)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		doc, err := tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AppendVersion(ctx, &types.DocumentVersion{
			DocID: id, VersionNumber: doc.CurrentVersionNumber, ContentHash: doc.ContentHash,
			CharacterDelta: len(newContent) - len(before.Content),
		}); err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventEdit, DocID: id, HasDocID: true, SessionID: f.SessionID})
		return err
	})
	if err != nil {
		return nil, err
	}

	doc, err := f.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Hooks != nil {
		f.Hooks.Run(hooks.EventEdit, doc)
	}
	if changed && autoLink && f.Enrich != nil {
		f.Enrich.Enrich(ctx, doc)
	}
	return doc, nil
}

// Delete soft-deletes a document and appends a `delete` event, removing it
// from search visibility per spec.md 3's Document invariant.
func (f *Facade) Delete(ctx context.Context, id int64) error {
	doc, err := f.Store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	err = f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SoftDeleteDocument(ctx, id); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventDelete, DocID: id, HasDocID: true, SessionID: f.SessionID})
		return err
	})
	if err != nil {
		return err
	}
	if f.Hooks != nil {
		f.Hooks.Run(hooks.EventDelete, doc)
	}
	return nil
}

// Restore reverses a soft delete and appends a `restore` event.
func (f *Facade) Restore(ctx context.Context, id int64) error {
	err := f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.RestoreDocument(ctx, id); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventRestore, DocID: id, HasDocID: true, SessionID: f.SessionID})
		return err
	})
	if err != nil {
		return err
	}
	if f.Hooks != nil {
		doc, docErr := f.Store.GetDocument(ctx, id)
		if docErr == nil {
			f.Hooks.Run(hooks.EventRestore, doc)
		}
	}
	return nil
}

// AddTags normalizes and attaches tags to a live document (spec.md 4.3).
func (f *Facade) AddTags(ctx context.Context, id int64, names []string) error {
	return f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.AddTags(ctx, id, names)
	})
}

// Link records a manual (or enrichment-originated) document link, rejecting
// self-links and duplicates per spec.md 3's DocumentLink invariant, and
// appends a `link` knowledge event in the same transaction as the mutation
// (spec.md's invariant 5).
func (f *Facade) Link(ctx context.Context, src, dst int64, kind types.LinkKind, score float64) error {
	return f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.AddLink(ctx, &types.DocumentLink{SourceDocID: src, TargetDocID: dst, Kind: kind, SimilarityScore: score}); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventLink, DocID: src, HasDocID: true, SessionID: f.SessionID})
		return err
	})
}

// DocumentView is view()'s return value.
type DocumentView struct {
	Doc   *types.Document
	Tags  []string
	Links []*types.DocumentLink
}

// View fetches a document, increments its access_count and accessed_at per
// spec.md 4.8's view() guarantee, and attaches its tags and outgoing links.
// The access bump and the `view` event are written in the same transaction
// per spec.md's invariant 5.
func (f *Facade) View(ctx context.Context, id int64) (*DocumentView, error) {
	doc, err := f.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, types.ErrSoftDeleted
	}
	err = f.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.TouchAccess(ctx, id); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventView, DocID: id, HasDocID: true, SessionID: f.SessionID})
		return err
	})
	if err != nil {
		return nil, err
	}
	// Re-fetch so the returned view reflects the bumped access_count/accessed_at.
	doc, err = f.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := f.Store.GetTags(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := f.Store.LinksFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DocumentView{Doc: doc, Tags: tags, Links: links}, nil
}

// FindArgs configures a find() call (spec.md 4.8).
type FindArgs struct {
	Query      string
	Mode       types.SearchMode
	Filter     types.SearchFilter
	Limit      int
	Offset     int
	Recent     int // > 0 selects the --recent N variant
	Similar    int64
	HasSimilar bool
	Wander     bool
}

// SearchResult is find()'s return value.
type SearchResult struct {
	Results []search.Result
}

// Find resolves a query (or a --recent/--similar/--wander variant) into a
// ranked, filtered document list (spec.md 4.5).
func (f *Facade) Find(ctx context.Context, args FindArgs) (*SearchResult, error) {
	if f.Search == nil {
		return nil, fmt.Errorf("facade: search engine not configured")
	}
	if args.Recent > 0 {
		docs, err := f.Search.Recent(ctx, args.Recent)
		if err != nil {
			return nil, err
		}
		results := make([]search.Result, len(docs))
		for i, d := range docs {
			results[i] = search.Result{Doc: d}
		}
		return &SearchResult{Results: results}, nil
	}
	if args.HasSimilar {
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}
		results, err := f.Search.Similar(ctx, args.Similar, limit)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Results: results}, nil
	}

	req := search.Request{Query: args.Query, Mode: args.Mode, Filter: args.Filter, Limit: args.Limit, Offset: args.Offset}
	if args.Wander {
		k := args.Limit
		if k <= 0 {
			k = 10
		}
		results, err := f.Search.Wander(ctx, req, k)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Results: results}, nil
	}

	results, err := f.Search.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := f.Store.AppendEvent(ctx, &types.KnowledgeEvent{EventType: types.EventSearch, Metadata: args.Query, SessionID: f.SessionID}); err != nil {
		return nil, err
	}
	return &SearchResult{Results: results}, nil
}

// MaintainPurgeTrash permanently deletes documents soft-deleted before the
// cutoff (spec.md 4.3's purge_trash()).
func (f *Facade) MaintainPurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	return f.Store.PurgeTrash(ctx, olderThan)
}

// MaintainReapStale promotes timed-out running executions to stale
// (spec.md 4.6's reap_stale()).
func (f *Facade) MaintainReapStale(ctx context.Context, threshold time.Duration) (int, error) {
	return execution.ReapStale(ctx, f.Store, threshold)
}

// Ask answers a natural-language question against the top-k search results
// via the configured LLM collaborator (spec.md 4.5's `--ask` query variant).
func (f *Facade) Ask(ctx context.Context, question string, topK int) (*search.QAResult, error) {
	if f.Search == nil {
		return nil, fmt.Errorf("facade: search engine not configured")
	}
	if f.Invoker == nil {
		return nil, types.ErrToolMissing
	}
	return f.Search.Ask(ctx, question, f.Invoker, topK)
}
