package compact

import (
	"context"
	"errors"
	"testing"

	"github.com/emdx-dev/emdx/internal/types"
)

type fakeStore struct {
	docs    map[int64]*types.Document
	updated map[int64]string
	events  []*types.KnowledgeEvent
}

func newFakeStore(docs ...*types.Document) *fakeStore {
	s := &fakeStore{docs: map[int64]*types.Document{}, updated: map[int64]string{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeStore) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) UpdateDocumentContent(ctx context.Context, id int64, content string) (bool, error) {
	d, ok := s.docs[id]
	if !ok {
		return false, types.ErrNotFound
	}
	if d.Content == content {
		return false, nil
	}
	d.Content = content
	s.updated[id] = content
	return true, nil
}

func (s *fakeStore) AppendVersion(ctx context.Context, v *types.DocumentVersion) error { return nil }

func (s *fakeStore) AppendEvent(ctx context.Context, ev *types.KnowledgeEvent) (int64, error) {
	s.events = append(s.events, ev)
	return int64(len(s.events)), nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, doc *types.Document) (string, error) {
	return f.summary, f.err
}

func TestCompactDocument_ShrinksContent(t *testing.T) {
	store := newFakeStore(&types.Document{ID: 1, Title: "long note", Content: "this is a very long piece of content that goes on and on"})
	c, err := New(store, &fakeSummarizer{summary: "short summary"}, &Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := c.CompactDocument(context.Background(), 1)
	if err != nil {
		t.Fatalf("CompactDocument: %v", err)
	}
	if result.CompactedSize >= result.OriginalSize {
		t.Fatalf("expected compacted size to shrink, got %d -> %d", result.OriginalSize, result.CompactedSize)
	}
	if store.updated[1] != "short summary" {
		t.Fatalf("expected content replaced, got %q", store.updated[1])
	}
	if len(store.events) != 1 || store.events[0].EventType != types.EventEdit {
		t.Fatalf("expected one edit event, got %+v", store.events)
	}
}

func TestCompactDocument_RejectsGrowth(t *testing.T) {
	store := newFakeStore(&types.Document{ID: 1, Title: "short", Content: "x"})
	c, _ := New(store, &fakeSummarizer{summary: "a much longer summary than the original content"}, &Config{})

	_, err := c.CompactDocument(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error when compaction would grow the document")
	}
	if _, ok := store.updated[1]; ok {
		t.Fatal("expected content to be left untouched")
	}
}

func TestCompactDocument_DryRun(t *testing.T) {
	store := newFakeStore(&types.Document{ID: 1, Title: "t", Content: "content"})
	c, err := New(store, nil, &Config{DryRun: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := c.CompactDocument(context.Background(), 1)
	if err != nil {
		t.Fatalf("CompactDocument: %v", err)
	}
	if result.OriginalSize != len("content") {
		t.Fatalf("unexpected original size %d", result.OriginalSize)
	}
	if _, ok := store.updated[1]; ok {
		t.Fatal("dry run must not write")
	}
}

func TestCompactDocument_SummarizerError(t *testing.T) {
	store := newFakeStore(&types.Document{ID: 1, Title: "t", Content: "content"})
	c, _ := New(store, &fakeSummarizer{err: errors.New("boom")}, &Config{})

	if _, err := c.CompactDocument(context.Background(), 1); err == nil {
		t.Fatal("expected summarizer error to propagate")
	}
}

func TestNew_RequiresSummarizerUnlessDryRun(t *testing.T) {
	if _, err := New(newFakeStore(), nil, &Config{}); err == nil {
		t.Fatal("expected error when summarizer is nil and DryRun is false")
	}
}

func TestCompactBatch_RunsAllDocuments(t *testing.T) {
	store := newFakeStore(
		&types.Document{ID: 1, Title: "a", Content: "aaaaaaaaaa"},
		&types.Document{ID: 2, Title: "b", Content: "bbbbbbbbbb"},
		&types.Document{ID: 3, Title: "c", Content: "cccccccccc"},
	)
	c, _ := New(store, &fakeSummarizer{summary: "short"}, &Config{Concurrency: 2})

	results := c.CompactBatch(context.Background(), []int64{1, 2, 3})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("doc %d: unexpected error %v", r.DocID, r.Err)
		}
	}
}
