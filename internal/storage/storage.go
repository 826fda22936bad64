// Package storage defines the interface for the emdx knowledge store's
// embedded relational backend. Every mutation in the system goes through
// this interface; direct table writes from outside internal/storage/sqlite
// are forbidden by convention (see DESIGN.md).
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

// Transaction exposes the subset of Storage methods that execute within a
// single database transaction, used for atomic multi-step workflows (e.g.
// save + tags + version row + knowledge event).
//
// # Semantics
//
//   - All operations share one connection and are invisible to other
//     connections until commit.
//   - Any returned error rolls the transaction back.
//   - A panic inside the callback rolls the transaction back and is
//     returned as an error.
//   - SQLite transactions are opened BEGIN IMMEDIATE to acquire the write
//     lock up front and avoid upgrade deadlocks under contention.
type Transaction interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	UpdateDocumentContent(ctx context.Context, id int64, content string) (changed bool, err error)
	SoftDeleteDocument(ctx context.Context, id int64) error
	RestoreDocument(ctx context.Context, id int64) error
	GetDocument(ctx context.Context, id int64) (*types.Document, error)
	TouchAccess(ctx context.Context, id int64) error
	AddTags(ctx context.Context, docID int64, names []string) error
	AddLink(ctx context.Context, link *types.DocumentLink) error
	AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error)
	AppendVersion(ctx context.Context, v *types.DocumentVersion) error
	ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error
}

// Storage is the full repository surface consumed by internal/facade and
// internal/search; it is implemented by internal/storage/sqlite.
type Storage interface {
	// Documents
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id int64) (*types.Document, error)
	TouchAccess(ctx context.Context, id int64) error
	UpdateDocumentContent(ctx context.Context, id int64, content string) (changed bool, err error)
	SoftDeleteDocument(ctx context.Context, id int64) error
	RestoreDocument(ctx context.Context, id int64) error
	PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error)
	ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error)
	ListAllTitles(ctx context.Context) (map[int64]string, error)

	// Tags
	AddTags(ctx context.Context, docID int64, names []string) error
	GetTags(ctx context.Context, docID int64) ([]string, error)

	// Categories & tasks
	UpsertCategory(ctx context.Context, key, displayName string) error
	GetCategory(ctx context.Context, key string) (*types.Category, error)
	NextSequenceNumber(ctx context.Context, categoryKey string) (int, error)
	CreateTask(ctx context.Context, t *types.Task) error
	GetTask(ctx context.Context, id int64) (*types.Task, error)
	GetTaskByDisplayID(ctx context.Context, categoryKey string, seq int) (*types.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status types.TaskStatus) error
	ListTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error)
	ReadyTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error)
	EpicChildren(ctx context.Context, epicKey string) ([]*types.Task, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *types.TaskDependency) error
	RemoveDependency(ctx context.Context, blockerID, blockedID int64) error
	Blockers(ctx context.Context, taskID int64) ([]int64, error)
	Blocked(ctx context.Context, taskID int64) ([]int64, error)
	WouldCycle(ctx context.Context, blockerID, blockedID int64) (bool, error)

	// Links
	AddLink(ctx context.Context, link *types.DocumentLink) error
	LinksFrom(ctx context.Context, docID int64) ([]*types.DocumentLink, error)

	// Entities
	ReplaceEntities(ctx context.Context, docID int64, entities []types.Entity) error
	DocsSharingEntity(ctx context.Context, docID int64, entityTypes []string) ([]int64, error)

	// Executions
	CreateExecution(ctx context.Context, e *types.Execution) error
	GetExecution(ctx context.Context, id int64) (*types.Execution, error)
	UpdateExecutionHeartbeat(ctx context.Context, id int64) error
	CompleteExecution(ctx context.Context, id int64, docID int64, hasDoc bool, exitCode int) error
	FailExecution(ctx context.Context, id int64, exitCode int) error
	KillExecution(ctx context.Context, id int64) error
	StaleExecutions(ctx context.Context, olderThan time.Time) ([]*types.Execution, error)
	MarkStale(ctx context.Context, id int64) error
	SetExecutionPRURL(ctx context.Context, id int64, url string) error
	ListExecutions(ctx context.Context, limit int) ([]*types.Execution, error)
	SetExecutionLogFile(ctx context.Context, id int64, path string) error

	// Versions & events
	AppendVersion(ctx context.Context, v *types.DocumentVersion) error
	AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error)
	RecentEvents(ctx context.Context, docID int64, limit int) ([]*types.KnowledgeEvent, error)

	// Chunks / embeddings
	ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error
	AllChunks(ctx context.Context) ([]types.Chunk, error)

	// Full-text search
	SearchFTS(ctx context.Context, query string, limit int) ([]FTSHit, error)

	// Schema flags (one-time operation markers)
	GetSchemaFlag(ctx context.Context, key string) (time.Time, bool, error)
	SetSchemaFlag(ctx context.Context, key string) error

	// Transactions
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
	Path() string
	UnderlyingDB() *sql.DB
}

// FTSHit is one row returned by the documents_fts MATCH query, carrying the
// bm25 score used by the Search Pipeline's keyword ranking.
type FTSHit struct {
	DocID     int64
	BM25Score float64
}
