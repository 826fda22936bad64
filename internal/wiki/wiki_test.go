package wiki

import (
	"context"
	"testing"

	"github.com/emdx-dev/emdx/internal/types"
)

type fakeStore struct {
	docs map[int64]*types.Document
	tags map[int64][]string
}

func (f *fakeStore) ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error) {
	var out []*types.Document
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) GetTags(ctx context.Context, docID int64) ([]string, error) {
	return f.tags[docID], nil
}

func TestClusterByTag_DropsSingletonClusters(t *testing.T) {
	store := &fakeStore{
		docs: map[int64]*types.Document{
			1: {ID: 1, Title: "a", DocType: types.DocTypeUser},
			2: {ID: 2, Title: "b", DocType: types.DocTypeUser},
			3: {ID: 3, Title: "c", DocType: types.DocTypeUser},
		},
		tags: map[int64][]string{
			1: {"go"},
			2: {"go"},
			3: {"rust"},
		},
	}

	topics, err := ClusterByTag(context.Background(), store, 2)
	if err != nil {
		t.Fatalf("ClusterByTag: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("expected exactly one cluster (go), got %d: %+v", len(topics), topics)
	}
	if topics[0].Tag != "go" || len(topics[0].Docs) != 2 {
		t.Fatalf("expected go cluster with 2 docs, got %+v", topics[0])
	}
}

func TestClusterByTag_SkipsQADocuments(t *testing.T) {
	store := &fakeStore{
		docs: map[int64]*types.Document{
			1: {ID: 1, Title: "a", DocType: types.DocTypeQA},
			2: {ID: 2, Title: "b", DocType: types.DocTypeQA},
		},
		tags: map[int64][]string{1: {"go"}, 2: {"go"}},
	}

	topics, err := ClusterByTag(context.Background(), store, 2)
	if err != nil {
		t.Fatalf("ClusterByTag: %v", err)
	}
	if len(topics) != 0 {
		t.Fatalf("expected no clusters from QA-only documents, got %+v", topics)
	}
}
