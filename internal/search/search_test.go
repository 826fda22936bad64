package search

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/emdx-dev/emdx/internal/storage"
	"github.com/emdx-dev/emdx/internal/types"
)

// fakeStorage is a minimal in-memory Storage used only to exercise the
// ranking and filtering logic in this package; every unused method panics
// so an accidental call surfaces immediately in a test failure.
type fakeStorage struct {
	docs    map[int64]*types.Document
	tags    map[int64][]string
	chunks  []types.Chunk
	ftsHits []storage.FTSHit
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{docs: map[int64]*types.Document{}, tags: map[int64][]string{}}
}

func (f *fakeStorage) addDoc(doc *types.Document) { f.docs[doc.ID] = doc }

func (f *fakeStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}
func (f *fakeStorage) GetTags(ctx context.Context, docID int64) ([]string, error) {
	return f.tags[docID], nil
}
func (f *fakeStorage) ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error) {
	var out []*types.Document
	for _, d := range f.docs {
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
func (f *fakeStorage) AllChunks(ctx context.Context) ([]types.Chunk, error) { return f.chunks, nil }
func (f *fakeStorage) SearchFTS(ctx context.Context, query string, limit int) ([]storage.FTSHit, error) {
	return f.ftsHits, nil
}

// The remaining Storage methods are unused by this package's tests.
func (f *fakeStorage) CreateDocument(ctx context.Context, doc *types.Document) error { panic("unused") }
func (f *fakeStorage) TouchAccess(ctx context.Context, id int64) error               { panic("unused") }
func (f *fakeStorage) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	panic("unused")
}
func (f *fakeStorage) SoftDeleteDocument(ctx context.Context, id int64) error { panic("unused") }
func (f *fakeStorage) RestoreDocument(ctx context.Context, id int64) error    { panic("unused") }
func (f *fakeStorage) PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	panic("unused")
}
func (f *fakeStorage) ListAllTitles(ctx context.Context) (map[int64]string, error) {
	panic("unused")
}
func (f *fakeStorage) AddTags(ctx context.Context, docID int64, names []string) error {
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
func (f *fakeStorage) Blockers(ctx context.Context, taskID int64) ([]int64, error) { panic("unused") }
func (f *fakeStorage) Blocked(ctx context.Context, taskID int64) ([]int64, error)  { panic("unused") }
func (f *fakeStorage) WouldCycle(ctx context.Context, blockerID, blockedID int64) (bool, error) {
	panic("unused")
}
func (f *fakeStorage) AddLink(ctx context.Context, link *types.DocumentLink) error { panic("unused") }
func (f *fakeStorage) LinksFrom(ctx context.Context, docID int64) ([]*types.DocumentLink, error) {
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
func (f *fakeStorage) AppendVersion(ctx context.Context, v *types.DocumentVersion) error {
	panic("unused")
}
func (f *fakeStorage) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	panic("unused")
}
func (f *fakeStorage) RecentEvents(ctx context.Context, docID int64, limit int) ([]*types.KnowledgeEvent, error) {
	panic("unused")
}
func (f *fakeStorage) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	panic("unused")
}
func (f *fakeStorage) GetSchemaFlag(ctx context.Context, key string) (time.Time, bool, error) {
	panic("unused")
}
func (f *fakeStorage) SetSchemaFlag(ctx context.Context, key string) error { panic("unused") }
func (f *fakeStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	panic("unused")
}
func (f *fakeStorage) Close() error          { panic("unused") }
func (f *fakeStorage) Path() string          { panic("unused") }
func (f *fakeStorage) UnderlyingDB() *sql.DB { panic("unused") }

var _ storage.Storage = (*fakeStorage)(nil)

func mkDoc(id int64, title string, updated time.Time) *types.Document {
	return &types.Document{ID: id, Title: title, Content: title, DocType: types.DocTypeUser, UpdatedAt: updated, CreatedAt: updated}
}

func TestSearch_KeywordOnlyRanksByNormalizedBM25(t *testing.T) {
	fs := newFakeStorage()
	now := time.Now()
	fs.addDoc(mkDoc(1, "alpha", now))
	fs.addDoc(mkDoc(2, "beta", now))
	// Lower bm25 is better; doc 2 should rank first after normalisation.
	fs.ftsHits = []storage.FTSHit{{DocID: 1, BM25Score: -1.0}, {DocID: 2, BM25Score: -5.0}}

	e := New(fs, nil, 60)
	results, err := e.Search(context.Background(), Request{Query: "x", Mode: types.ModeKeyword, Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Doc.ID != 2 {
		t.Errorf("expected doc 2 ranked first, got doc %d", results[0].Doc.ID)
	}
}

func TestSearch_HybridFusesKeywordAndSemantic(t *testing.T) {
	fs := newFakeStorage()
	now := time.Now()
	fs.addDoc(mkDoc(1, "alpha", now))
	fs.addDoc(mkDoc(2, "beta", now))
	fs.ftsHits = []storage.FTSHit{{DocID: 1, BM25Score: -1.0}, {DocID: 2, BM25Score: -1.0}}
	fs.chunks = []types.Chunk{
		{DocID: 1, ChunkIndex: 0, Embedding: []float32{1, 0}},
		{DocID: 2, ChunkIndex: 0, Embedding: []float32{0, 1}},
	}

	e := New(fs, stubEmbedder{vec: []float32{1, 0}}, 60)
	results, err := e.Search(context.Background(), Request{Query: "x", Mode: types.ModeHybrid, Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 || results[0].Doc.ID != 1 {
		t.Fatalf("expected doc 1 ranked first by fused score, got %+v", results)
	}
	if !results[0].HasKeyword || !results[0].HasSemantic {
		t.Errorf("expected doc 1 to have both keyword and semantic components: %+v", results[0])
	}
}

func TestSearch_ExcludesQADocTypeByDefault(t *testing.T) {
	fs := newFakeStorage()
	now := time.Now()
	qa := mkDoc(1, "qa", now)
	qa.DocType = types.DocTypeQA
	fs.addDoc(qa)
	fs.ftsHits = []storage.FTSHit{{DocID: 1, BM25Score: -1.0}}

	e := New(fs, nil, 60)
	results, err := e.Search(context.Background(), Request{Query: "x", Mode: types.ModeKeyword, Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected qa doc excluded by default, got %+v", results)
	}

	results, err = e.Search(context.Background(), Request{Query: "x", Mode: types.ModeKeyword, Limit: 10, Filter: types.SearchFilter{IncludeQA: true}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected qa doc included with IncludeQA, got %+v", results)
	}
}

func TestSearch_TagFilterModes(t *testing.T) {
	fs := newFakeStorage()
	now := time.Now()
	fs.addDoc(mkDoc(1, "one", now))
	fs.addDoc(mkDoc(2, "two", now))
	fs.tags[1] = []string{"go", "cli"}
	fs.tags[2] = []string{"python"}
	fs.ftsHits = []storage.FTSHit{{DocID: 1, BM25Score: -1.0}, {DocID: 2, BM25Score: -1.0}}

	e := New(fs, nil, 60)
	results, err := e.Search(context.Background(), Request{
		Query: "x", Mode: types.ModeKeyword, Limit: 10,
		Filter: types.SearchFilter{Tags: []types.TagFilter{{Mode: types.TagFilterNOT, Tags: []string{"python"}}}},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Doc.ID != 1 {
		t.Fatalf("expected only doc 1 to survive NOT python filter, got %+v", results)
	}
}

func TestRecent_DelegatesToListLiveDocuments(t *testing.T) {
	fs := newFakeStorage()
	fs.addDoc(mkDoc(1, "one", time.Now()))
	e := New(fs, nil, 60)
	docs, err := e.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
}

func TestWander_ReturnsAtMostK(t *testing.T) {
	fs := newFakeStorage()
	now := time.Now()
	var hits []storage.FTSHit
	for i := int64(1); i <= 9; i++ {
		fs.addDoc(mkDoc(i, "doc", now))
		hits = append(hits, storage.FTSHit{DocID: i, BM25Score: -float64(i)})
	}
	fs.ftsHits = hits

	e := New(fs, nil, 60)
	results, err := e.Wander(context.Background(), Request{Query: "x", Mode: types.ModeKeyword}, 3)
	if err != nil {
		t.Fatalf("Wander failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return s.vec, nil }
func (s stubEmbedder) Dim() int                                                  { return len(s.vec) }
