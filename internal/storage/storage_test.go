// Package storage tests for interface compliance and contract verification.
package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

// Compile-time interface conformance checks.
// These verify that mock implementations can satisfy the interfaces.
// Real conformance tests for the sqlite backend live in internal/storage/sqlite.
var (
	_ Storage     = (*mockStorage)(nil)
	_ Transaction = (*mockTransaction)(nil)
)

// mockStorage is a minimal mock for interface testing.
type mockStorage struct{}

func (m *mockStorage) CreateDocument(ctx context.Context, doc *types.Document) error { return nil }
func (m *mockStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	return nil, nil
}
func (m *mockStorage) TouchAccess(ctx context.Context, id int64) error { return nil }
func (m *mockStorage) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	return false, nil
}
func (m *mockStorage) SoftDeleteDocument(ctx context.Context, id int64) error { return nil }
func (m *mockStorage) RestoreDocument(ctx context.Context, id int64) error    { return nil }
func (m *mockStorage) PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}
func (m *mockStorage) ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error) {
	return nil, nil
}
func (m *mockStorage) ListAllTitles(ctx context.Context) (map[int64]string, error) { return nil, nil }

func (m *mockStorage) AddTags(ctx context.Context, docID int64, names []string) error { return nil }
func (m *mockStorage) GetTags(ctx context.Context, docID int64) ([]string, error)     { return nil, nil }

func (m *mockStorage) UpsertCategory(ctx context.Context, key, displayName string) error { return nil }
func (m *mockStorage) GetCategory(ctx context.Context, key string) (*types.Category, error) {
	return nil, nil
}
func (m *mockStorage) NextSequenceNumber(ctx context.Context, categoryKey string) (int, error) {
	return 0, nil
}
func (m *mockStorage) CreateTask(ctx context.Context, t *types.Task) error { return nil }
func (m *mockStorage) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	return nil, nil
}
func (m *mockStorage) GetTaskByDisplayID(ctx context.Context, categoryKey string, seq int) (*types.Task, error) {
	return nil, nil
}
func (m *mockStorage) UpdateTaskStatus(ctx context.Context, id int64, status types.TaskStatus) error {
	return nil
}
func (m *mockStorage) ListTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	return nil, nil
}
func (m *mockStorage) ReadyTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	return nil, nil
}
func (m *mockStorage) EpicChildren(ctx context.Context, epicKey string) ([]*types.Task, error) {
	return nil, nil
}

func (m *mockStorage) AddDependency(ctx context.Context, dep *types.TaskDependency) error { return nil }
func (m *mockStorage) RemoveDependency(ctx context.Context, blockerID, blockedID int64) error {
	return nil
}
func (m *mockStorage) Blockers(ctx context.Context, taskID int64) ([]int64, error) { return nil, nil }
func (m *mockStorage) Blocked(ctx context.Context, taskID int64) ([]int64, error)  { return nil, nil }
func (m *mockStorage) WouldCycle(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	return false, nil
}

func (m *mockStorage) AddLink(ctx context.Context, link *types.DocumentLink) error { return nil }
func (m *mockStorage) LinksFrom(ctx context.Context, docID int64) ([]*types.DocumentLink, error) {
	return nil, nil
}

func (m *mockStorage) ReplaceEntities(ctx context.Context, docID int64, entities []types.Entity) error {
	return nil
}
func (m *mockStorage) DocsSharingEntity(ctx context.Context, docID int64, entityTypes []string) ([]int64, error) {
	return nil, nil
}

func (m *mockStorage) CreateExecution(ctx context.Context, e *types.Execution) error { return nil }
func (m *mockStorage) GetExecution(ctx context.Context, id int64) (*types.Execution, error) {
	return nil, nil
}
func (m *mockStorage) UpdateExecutionHeartbeat(ctx context.Context, id int64) error { return nil }
func (m *mockStorage) CompleteExecution(ctx context.Context, id int64, docID int64, hasDoc bool, exitCode int) error {
	return nil
}
func (m *mockStorage) FailExecution(ctx context.Context, id int64, exitCode int) error { return nil }
func (m *mockStorage) KillExecution(ctx context.Context, id int64) error               { return nil }
func (m *mockStorage) StaleExecutions(ctx context.Context, olderThan time.Time) ([]*types.Execution, error) {
	return nil, nil
}
func (m *mockStorage) MarkStale(ctx context.Context, id int64) error { return nil }
func (m *mockStorage) SetExecutionPRURL(ctx context.Context, id int64, url string) error {
	return nil
}
func (m *mockStorage) ListExecutions(ctx context.Context, limit int) ([]*types.Execution, error) {
	return nil, nil
}
func (m *mockStorage) SetExecutionLogFile(ctx context.Context, id int64, path string) error {
	return nil
}

func (m *mockStorage) AppendVersion(ctx context.Context, v *types.DocumentVersion) error { return nil }
func (m *mockStorage) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	return 0, nil
}
func (m *mockStorage) RecentEvents(ctx context.Context, docID int64, limit int) ([]*types.KnowledgeEvent, error) {
	return nil, nil
}

func (m *mockStorage) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	return nil
}
func (m *mockStorage) AllChunks(ctx context.Context) ([]types.Chunk, error) { return nil, nil }

func (m *mockStorage) SearchFTS(ctx context.Context, query string, limit int) ([]FTSHit, error) {
	return nil, nil
}

func (m *mockStorage) GetSchemaFlag(ctx context.Context, key string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (m *mockStorage) SetSchemaFlag(ctx context.Context, key string) error { return nil }

func (m *mockStorage) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	return fn(&mockTransaction{})
}

func (m *mockStorage) Close() error               { return nil }
func (m *mockStorage) Path() string               { return "" }
func (m *mockStorage) UnderlyingDB() *sql.DB      { return nil }

// mockTransaction is a minimal mock for Transaction interface testing.
type mockTransaction struct{}

func (m *mockTransaction) CreateDocument(ctx context.Context, doc *types.Document) error { return nil }
func (m *mockTransaction) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	return false, nil
}
func (m *mockTransaction) SoftDeleteDocument(ctx context.Context, id int64) error { return nil }
func (m *mockTransaction) RestoreDocument(ctx context.Context, id int64) error    { return nil }
func (m *mockTransaction) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	return nil, nil
}
func (m *mockTransaction) TouchAccess(ctx context.Context, id int64) error { return nil }
func (m *mockTransaction) AddTags(ctx context.Context, docID int64, names []string) error {
	return nil
}
func (m *mockTransaction) AddLink(ctx context.Context, link *types.DocumentLink) error { return nil }
func (m *mockTransaction) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	return 0, nil
}
func (m *mockTransaction) AppendVersion(ctx context.Context, v *types.DocumentVersion) error {
	return nil
}
func (m *mockTransaction) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	return nil
}

// TestInterfaceDocumentation verifies interface methods exist with expected
// signatures. It serves as documentation and catches accidental signature
// drift between the Storage/Transaction interfaces and their implementers.
func TestInterfaceDocumentation(t *testing.T) {
	t.Run("Storage interface has expected method groups", func(t *testing.T) {
		var s Storage = &mockStorage{}

		_ = s.CreateDocument
		_ = s.GetDocument
		_ = s.TouchAccess
		_ = s.UpdateDocumentContent
		_ = s.SoftDeleteDocument
		_ = s.RestoreDocument
		_ = s.PurgeTrash
		_ = s.ListLiveDocuments
		_ = s.ListAllTitles

		_ = s.AddTags
		_ = s.GetTags

		_ = s.UpsertCategory
		_ = s.GetCategory
		_ = s.NextSequenceNumber
		_ = s.CreateTask
		_ = s.GetTask
		_ = s.GetTaskByDisplayID
		_ = s.UpdateTaskStatus
		_ = s.ListTasks
		_ = s.ReadyTasks
		_ = s.EpicChildren

		_ = s.AddDependency
		_ = s.RemoveDependency
		_ = s.Blockers
		_ = s.Blocked
		_ = s.WouldCycle

		_ = s.AddLink
		_ = s.LinksFrom

		_ = s.ReplaceEntities
		_ = s.DocsSharingEntity

		_ = s.CreateExecution
		_ = s.GetExecution
		_ = s.UpdateExecutionHeartbeat
		_ = s.CompleteExecution
		_ = s.FailExecution
		_ = s.KillExecution
		_ = s.StaleExecutions
		_ = s.MarkStale
		_ = s.SetExecutionPRURL
		_ = s.ListExecutions
		_ = s.SetExecutionLogFile

		_ = s.AppendVersion
		_ = s.AppendEvent
		_ = s.RecentEvents

		_ = s.ReplaceChunks
		_ = s.AllChunks

		_ = s.SearchFTS

		_ = s.GetSchemaFlag
		_ = s.SetSchemaFlag

		_ = s.RunInTransaction

		_ = s.Close
		_ = s.Path
		_ = s.UnderlyingDB
	})

	t.Run("Transaction interface has expected methods", func(t *testing.T) {
		var tx Transaction = &mockTransaction{}

		_ = tx.CreateDocument
		_ = tx.UpdateDocumentContent
		_ = tx.SoftDeleteDocument
		_ = tx.RestoreDocument
		_ = tx.GetDocument
		_ = tx.AddTags
		_ = tx.AddLink
		_ = tx.AppendEvent
		_ = tx.AppendVersion
		_ = tx.ReplaceChunks
	})

	t.Run("RunInTransaction invokes callback with a Transaction", func(t *testing.T) {
		s := &mockStorage{}
		called := false
		err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
			called = true
			if tx == nil {
				t.Fatal("expected non-nil transaction")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatal("expected callback to be invoked")
		}
	})
}
