package facade

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// fakeStorage is a minimal in-memory storage.Storage used only to exercise
// the facade's transaction sequencing and error propagation; every unused
// method panics so an accidental call surfaces immediately in a test
// failure, the same shape internal/search's own fakeStorage uses.
type fakeStorage struct {
	docs    map[int64]*types.Document
	tags    map[int64][]string
	links   []*types.DocumentLink
	events  []*types.KnowledgeEvent
	nextID  int64
	nextEvt int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{docs: map[int64]*types.Document{}, tags: map[int64][]string{}}
}

func (f *fakeStorage) CreateDocument(ctx context.Context, doc *types.Document) error {
	f.nextID++
	doc.ID = f.nextID
	doc.ContentHash = "hash"
	doc.CurrentVersionNumber = 1
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStorage) TouchAccess(ctx context.Context, id int64) error {
	d, ok := f.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	d.AccessCount++
	d.AccessedAt = time.Now()
	return nil
}

func (f *fakeStorage) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	d, ok := f.docs[id]
	if !ok {
		return false, types.ErrNotFound
	}
	if d.Content == content {
		return false, nil
	}
	d.Content = content
	d.CurrentVersionNumber++
	d.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStorage) SoftDeleteDocument(ctx context.Context, id int64) error {
	d, ok := f.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	d.IsDeleted = true
	return nil
}

func (f *fakeStorage) RestoreDocument(ctx context.Context, id int64) error {
	d, ok := f.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	d.IsDeleted = false
	return nil
}

func (f *fakeStorage) AddTags(ctx context.Context, docID int64, names []string) error {
	f.tags[docID] = append(f.tags[docID], names...)
	return nil
}

func (f *fakeStorage) GetTags(ctx context.Context, docID int64) ([]string, error) {
	return f.tags[docID], nil
}

func (f *fakeStorage) AddLink(ctx context.Context, link *types.DocumentLink) error {
	if link.SourceDocID == link.TargetDocID {
		return types.ErrSelfLink
	}
	f.links = append(f.links, link)
	return nil
}

func (f *fakeStorage) LinksFrom(ctx context.Context, docID int64) ([]*types.DocumentLink, error) {
	var out []*types.DocumentLink
	for _, l := range f.links {
		if l.SourceDocID == docID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStorage) AppendVersion(ctx context.Context, v *types.DocumentVersion) error {
	return nil
}

func (f *fakeStorage) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	f.nextEvt++
	ev.ID = f.nextEvt
	f.events = append(f.events, ev)
	return ev.ID, nil
}

func (f *fakeStorage) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	return nil
}

// RunInTransaction runs fn against f directly: f already implements every
// method storage.Transaction names, so no separate transaction type is
// needed for these tests.
func (f *fakeStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	return fn(f)
}

func (f *fakeStorage) Close() error          { return nil }
func (f *fakeStorage) Path() string          { return ":memory:" }
func (f *fakeStorage) UnderlyingDB() *sql.DB { return nil }

// The remaining Storage methods are unused by this package's tests.
func (f *fakeStorage) PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	panic("unused")
}
func (f *fakeStorage) ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error) {
	panic("unused")
}
func (f *fakeStorage) ListAllTitles(ctx context.Context) (map[int64]string, error) {
	panic("unused")
}
func (f *fakeStorage) UpsertCategory(ctx context.Context, key, displayName string) error {
	panic("unused")
}
func (f *fakeStorage) GetCategory(ctx context.Context, key string) (*types.Category, error) {
	panic("unused")
}
func (f *fakeStorage) NextSequenceNumber(ctx context.Context, categoryKey string) (int, error) {
	panic("unused")
}
func (f *fakeStorage) CreateTask(ctx context.Context, t *types.Task) error { panic("unused") }
func (f *fakeStorage) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	panic("unused")
}
func (f *fakeStorage) GetTaskByDisplayID(ctx context.Context, categoryKey string, seq int) (*types.Task, error) {
	panic("unused")
}
func (f *fakeStorage) UpdateTaskStatus(ctx context.Context, id int64, status types.TaskStatus) error {
	panic("unused")
}
func (f *fakeStorage) ListTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	panic("unused")
}
func (f *fakeStorage) ReadyTasks(ctx context.Context, filter types.WorkFilter) ([]*types.Task, error) {
	panic("unused")
}
func (f *fakeStorage) EpicChildren(ctx context.Context, epicKey string) ([]*types.Task, error) {
	panic("unused")
}
func (f *fakeStorage) AddDependency(ctx context.Context, dep *types.TaskDependency) error {
	panic("unused")
}
func (f *fakeStorage) RemoveDependency(ctx context.Context, blockerID, blockedID int64) error {
	panic("unused")
}
func (f *fakeStorage) Blockers(ctx context.Context, taskID int64) ([]int64, error) {
	panic("unused")
}
func (f *fakeStorage) Blocked(ctx context.Context, taskID int64) ([]int64, error) {
	panic("unused")
}
func (f *fakeStorage) WouldCycle(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	panic("unused")
}
func (f *fakeStorage) ReplaceEntities(ctx context.Context, docID int64, entities []types.Entity) error {
	panic("unused")
}
func (f *fakeStorage) DocsSharingEntity(ctx context.Context, docID int64, entityTypes []string) ([]int64, error) {
	panic("unused")
}
func (f *fakeStorage) CreateExecution(ctx context.Context, e *types.Execution) error {
	panic("unused")
}
func (f *fakeStorage) GetExecution(ctx context.Context, id int64) (*types.Execution, error) {
	panic("unused")
}
func (f *fakeStorage) UpdateExecutionHeartbeat(ctx context.Context, id int64) error {
	panic("unused")
}
func (f *fakeStorage) CompleteExecution(ctx context.Context, id int64, docID int64, hasDoc bool, exitCode int) error {
	panic("unused")
}
func (f *fakeStorage) FailExecution(ctx context.Context, id int64, exitCode int) error {
	panic("unused")
}
func (f *fakeStorage) KillExecution(ctx context.Context, id int64) error { panic("unused") }
func (f *fakeStorage) StaleExecutions(ctx context.Context, olderThan time.Time) ([]*types.Execution, error) {
	panic("unused")
}
func (f *fakeStorage) MarkStale(ctx context.Context, id int64) error { panic("unused") }
func (f *fakeStorage) SetExecutionPRURL(ctx context.Context, id int64, url string) error {
	panic("unused")
}
func (f *fakeStorage) ListExecutions(ctx context.Context, limit int) ([]*types.Execution, error) {
	panic("unused")
}
func (f *fakeStorage) SetExecutionLogFile(ctx context.Context, id int64, path string) error {
	panic("unused")
}
func (f *fakeStorage) RecentEvents(ctx context.Context, docID int64, limit int) ([]*types.KnowledgeEvent, error) {
	panic("unused")
}
func (f *fakeStorage) AllChunks(ctx context.Context) ([]types.Chunk, error) { panic("unused") }
func (f *fakeStorage) SearchFTS(ctx context.Context, query string, limit int) ([]storage.FTSHit, error) {
	panic("unused")
}
func (f *fakeStorage) GetSchemaFlag(ctx context.Context, key string) (time.Time, bool, error) {
	panic("unused")
}
func (f *fakeStorage) SetSchemaFlag(ctx context.Context, key string) error { panic("unused") }

func newTestFacade() (*Facade, *fakeStorage) {
	store := newFakeStorage()
	return New(store, nil, nil, nil, nil, nil, nil, nil), store
}

func TestSave_RequiresTitle(t *testing.T) {
	f, _ := newTestFacade()
	_, err := f.Save(context.Background(), SaveArgs{Title: "", Source: Source{Kind: SourceText, Text: "body"}})
	if err != types.ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestSave_CreatesDocumentWithTagsAndEvent(t *testing.T) {
	f, store := newTestFacade()
	saved, err := f.Save(context.Background(), SaveArgs{
		Title:  "hello",
		Source: Source{Kind: SourceText, Text: "body"},
		Tags:   []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Doc.ID == 0 {
		t.Fatal("expected a non-zero document id")
	}
	if got := store.tags[saved.Doc.ID]; len(got) != 2 {
		t.Fatalf("expected 2 tags, got %v", got)
	}
	if len(store.events) != 1 || store.events[0].EventType != types.EventSave {
		t.Fatalf("expected exactly one save event, got %v", store.events)
	}
}

func TestEdit_NoopWhenContentUnchanged(t *testing.T) {
	f, store := newTestFacade()
	saved, _ := f.Save(context.Background(), SaveArgs{Title: "t", Source: Source{Kind: SourceText, Text: "same"}})
	store.events = nil

	doc, err := f.Edit(context.Background(), saved.Doc.ID, "same", true)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if doc.CurrentVersionNumber != 1 {
		t.Fatalf("expected version to stay at 1 for a no-op edit, got %d", doc.CurrentVersionNumber)
	}
	if len(store.events) != 0 {
		t.Fatalf("expected no edit event for unchanged content, got %v", store.events)
	}
}

func TestEdit_BumpsVersionOnChange(t *testing.T) {
	f, store := newTestFacade()
	saved, _ := f.Save(context.Background(), SaveArgs{Title: "t", Source: Source{Kind: SourceText, Text: "v1"}})
	store.events = nil

	doc, err := f.Edit(context.Background(), saved.Doc.ID, "v2", false)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if doc.CurrentVersionNumber != 2 {
		t.Fatalf("expected version 2, got %d", doc.CurrentVersionNumber)
	}
	if len(store.events) != 1 || store.events[0].EventType != types.EventEdit {
		t.Fatalf("expected exactly one edit event, got %v", store.events)
	}
}

func TestDeleteThenView_ReturnsSoftDeleted(t *testing.T) {
	f, _ := newTestFacade()
	saved, _ := f.Save(context.Background(), SaveArgs{Title: "t", Source: Source{Kind: SourceText, Text: "v1"}})

	if err := f.Delete(context.Background(), saved.Doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.View(context.Background(), saved.Doc.ID); err != types.ErrSoftDeleted {
		t.Fatalf("expected ErrSoftDeleted, got %v", err)
	}
}

func TestRestore_MakesDocumentViewableAgain(t *testing.T) {
	f, _ := newTestFacade()
	saved, _ := f.Save(context.Background(), SaveArgs{Title: "t", Source: Source{Kind: SourceText, Text: "v1"}})
	_ = f.Delete(context.Background(), saved.Doc.ID)

	if err := f.Restore(context.Background(), saved.Doc.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	view, err := f.View(context.Background(), saved.Doc.ID)
	if err != nil {
		t.Fatalf("View after restore: %v", err)
	}
	if view.Doc.AccessCount != 1 {
		t.Fatalf("expected access_count 1 after one view, got %d", view.Doc.AccessCount)
	}
}

func TestView_IncrementsAccessCount(t *testing.T) {
	f, _ := newTestFacade()
	saved, _ := f.Save(context.Background(), SaveArgs{Title: "t", Source: Source{Kind: SourceText, Text: "v1"}})

	for i := 0; i < 3; i++ {
		if _, err := f.View(context.Background(), saved.Doc.ID); err != nil {
			t.Fatalf("View: %v", err)
		}
	}
	view, err := f.View(context.Background(), saved.Doc.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Doc.AccessCount != 4 {
		t.Fatalf("expected access_count 4, got %d", view.Doc.AccessCount)
	}
}

func TestLink_RejectsSelfLink(t *testing.T) {
	f, _ := newTestFacade()
	saved, _ := f.Save(context.Background(), SaveArgs{Title: "t", Source: Source{Kind: SourceText, Text: "v1"}})

	err := f.Link(context.Background(), saved.Doc.ID, saved.Doc.ID, types.LinkManual, 1.0)
	if err != types.ErrSelfLink {
		t.Fatalf("expected ErrSelfLink, got %v", err)
	}
}

func TestFind_WithoutSearchEngineReturnsError(t *testing.T) {
	f, _ := newTestFacade()
	if _, err := f.Find(context.Background(), FindArgs{Query: "x"}); err == nil {
		t.Fatal("expected an error when no search engine is configured")
	}
}
