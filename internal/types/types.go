// Package types defines the core records of the emdx knowledge store:
// documents, tags, categories, tasks, dependencies, links, executions,
// versions, events, and chunks. Every repository in internal/storage
// hydrates rows into these structs; nothing downstream touches a bare
// database/sql row.
package types

import (
	"strconv"
	"time"
)

// DocType classifies a Document's role in the store.
type DocType string

const (
	DocTypeUser DocType = "user"
	DocTypeWiki DocType = "wiki"
	DocTypeQA   DocType = "qa"
)

// Document is a markdown note plus its lifecycle metadata.
type Document struct {
	ID                   int64
	Title                string
	Content              string
	Project              string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	AccessedAt           time.Time
	AccessCount          int
	IsDeleted            bool
	DeletedAt            *time.Time
	DocType              DocType
	ContentHash          string
	CurrentVersionNumber int
	Tags                 []string
}

// Tag is a canonical (lowercase, trimmed) label attached to documents.
type Tag struct {
	ID   int64
	Name string
}

// Category owns a monotonic per-category sequence used to mint KEY-N task
// identifiers.
type Category struct {
	Key         string
	DisplayName string
}

// TaskStatus is the task lifecycle FSM state.
type TaskStatus string

const (
	StatusOpen    TaskStatus = "open"
	StatusActive  TaskStatus = "active"
	StatusBlocked TaskStatus = "blocked"
	StatusDone    TaskStatus = "done"
	StatusWontdo  TaskStatus = "wontdo"
)

// Task is a unit of work, optionally grouped under a Category and/or Epic.
type Task struct {
	ID             int64
	Title          string
	Description    string
	Status         TaskStatus
	Priority       int
	CategoryKey    string
	SequenceNumber int
	HasSequence    bool
	EpicKey        string
	IsEpic         bool
	ParentTaskID   int64
	HasParent      bool
	Prompt         string
	HasPrompt      bool
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// DisplayID is the user-facing identifier: {CATEGORY}-{seq} when both are
// present, else #{id}.
func (t *Task) DisplayID() string {
	if t.CategoryKey != "" && t.HasSequence {
		return t.CategoryKey + "-" + strconv.Itoa(t.SequenceNumber)
	}
	return "#" + strconv.FormatInt(t.ID, 10)
}

// TaskDependency is a directed "blocker blocks blocked" edge.
type TaskDependency struct {
	BlockerTaskID int64
	BlockedTaskID int64
	CreatedAt     time.Time
}

// LinkKind classifies how two documents came to be linked.
type LinkKind string

const (
	LinkTitleMatch LinkKind = "title_match"
	LinkEntity     LinkKind = "entity"
	LinkSemantic   LinkKind = "semantic"
	LinkManual     LinkKind = "manual"
)

// DocumentLink is an edge between two documents produced by the enrichment
// pipeline or a manual `link` call.
type DocumentLink struct {
	ID              int64
	SourceDocID     int64
	TargetDocID     int64
	Kind            LinkKind
	SimilarityScore float64
	CreatedAt       time.Time
}

// ExecutionStatus is the lifecycle state of a spawned agent process.
type ExecutionStatus string

const (
	ExecRunning   ExecutionStatus = "running"
	ExecCompleted ExecutionStatus = "completed"
	ExecFailed    ExecutionStatus = "failed"
	ExecKilled    ExecutionStatus = "killed"
	ExecStale     ExecutionStatus = "stale"
)

// Execution tracks one spawned agent subprocess end to end.
type Execution struct {
	ID              int64
	DocID           int64
	HasDocID        bool
	DocTitle        string
	Status          ExecutionStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	LogFile         string
	ExitCode        *int
	PID             *int
	WorkingDir      string
	LastHeartbeat   *time.Time
	AgentType       string
	PRURL           string
	TaskID          int64
	HasTaskID       bool
}

// DocumentVersion is an append-only record created on every content write.
type DocumentVersion struct {
	DocID          int64
	VersionNumber  int
	ContentHash    string
	CharacterDelta int
	CreatedAt      time.Time
}

// EventType classifies a KnowledgeEvent.
type EventType string

const (
	EventSave    EventType = "save"
	EventEdit    EventType = "edit"
	EventView    EventType = "view"
	EventSearch  EventType = "search"
	EventDelete  EventType = "delete"
	EventRestore EventType = "restore"
	EventLink    EventType = "link"
	EventExecute EventType = "execute"
	EventWarning EventType = "warning"
)

// KnowledgeEvent is an append-only audit record. The facade's Save, Edit,
// Delete, Restore, Link and View each append one in the same transaction as
// their change. Tag additions and task and execution changes append none,
// and compaction and enrichment append theirs outside any transaction.
type KnowledgeEvent struct {
	ID        int64
	EventType EventType
	DocID     int64
	HasDocID  bool
	SessionID string
	Metadata  string
	CreatedAt time.Time
}

// Chunk is a bounded substring of a document carrying its own embedding,
// rebuilt whenever the document's content changes.
type Chunk struct {
	DocID      int64
	ChunkIndex int
	Text       string
	Embedding  []float32
	TokenCount int
}

// EntityType classifies a named entity recognised by the enrichment
// pipeline's extraction pass (spec.md 4.4).
const (
	EntityHeading    = "heading"
	EntityProperNoun = "proper_noun"
	EntityCode       = "code"
)

// Entity is a named thing found in a document's content, persisted so
// documents sharing an entity can be linked (spec.md 4.4's entity table).
type Entity struct {
	ID         int64
	DocID      int64
	Name       string
	EntityType string
}
