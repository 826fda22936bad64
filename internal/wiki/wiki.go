// Package wiki implements the wiki_* command-facade family (spec.md 4.8):
// clustering live documents by shared tags into topics, then generating a
// synthesized article per topic through the opaque LLM collaborator, the
// same narrow-interface shape internal/compact uses for summarization.
package wiki

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"

	"github.com/emdx-dev/emdx/internal/llm"
	"github.com/emdx-dev/emdx/internal/types"
)

// DocumentStore is the narrow slice of storage.Storage wiki needs: every
// live document's tags, used to build topic clusters without requiring a
// dedicated clustering table.
type DocumentStore interface {
	ListLiveDocuments(ctx context.Context, limit int) ([]*types.Document, error)
	GetTags(ctx context.Context, docID int64) ([]string, error)
}

// Topic is a cluster of documents sharing a tag, the unit wiki_generate
// turns into one article.
type Topic struct {
	Tag   string
	Docs  []*types.Document
}

const listAllLimit = 1 << 30

// ClusterByTag groups every live document by each of its tags, dropping
// singleton clusters (a tag shared by only one document has nothing to
// synthesize), ordered by cluster size descending then tag name, a simple
// stand-in for real topic modelling that still produces stable output the
// way the teacher's own deterministic groupings do.
func ClusterByTag(ctx context.Context, store DocumentStore, minClusterSize int) ([]Topic, error) {
	if minClusterSize <= 0 {
		minClusterSize = 2
	}
	docs, err := store.ListLiveDocuments(ctx, listAllLimit)
	if err != nil {
		return nil, fmt.Errorf("wiki: list documents: %w", err)
	}

	byTag := map[string][]*types.Document{}
	for _, d := range docs {
		if d.DocType == types.DocTypeQA {
			continue
		}
		tags, err := store.GetTags(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("wiki: get tags for doc %d: %w", d.ID, err)
		}
		for _, tag := range tags {
			byTag[tag] = append(byTag[tag], d)
		}
	}

	var topics []Topic
	for tag, tagged := range byTag {
		if len(tagged) < minClusterSize {
			continue
		}
		topics = append(topics, Topic{Tag: tag, Docs: tagged})
	}
	sort.Slice(topics, func(i, j int) bool {
		if len(topics[i].Docs) != len(topics[j].Docs) {
			return len(topics[i].Docs) > len(topics[j].Docs)
		}
		return topics[i].Tag < topics[j].Tag
	})
	return topics, nil
}

var articlePrompt = template.Must(template.New("wiki-article").Parse(
	`Write a wiki-style reference article synthesizing the documents below, ` +
		`all tagged "{{.Tag}}". Use headings and keep it organized. Do not ` +
		`invent facts not present in the source material.

{{range .Docs}}
### {{.Title}}

{{.Content}}

{{end}}`))

// Generator turns a Topic into article markdown via an llm.Invoker, the
// opaque LLM collaborator spec.md 1 scopes out of this module's core.
type Generator struct {
	invoker *llm.Invoker
}

// NewGenerator builds a Generator around invoker.
func NewGenerator(invoker *llm.Invoker) *Generator {
	return &Generator{invoker: invoker}
}

// Article is one generated wiki page, ready to be saved as a
// doc_type=wiki document by the caller (cmd/emdx's `maintain wiki`).
type Article struct {
	Title       string
	Content     string
	SourceDocs  []int64
	Tag         string
}

// Generate renders articlePrompt for topic and invokes the LLM, returning
// an Article the caller saves through facade.Save with DocType=wiki.
func (g *Generator) Generate(ctx context.Context, topic Topic) (*Article, error) {
	var buf bytes.Buffer
	if err := articlePrompt.Execute(&buf, topic); err != nil {
		return nil, fmt.Errorf("wiki: render prompt for %q: %w", topic.Tag, err)
	}

	content, err := g.invoker.Invoke(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("wiki: generate article for %q: %w", topic.Tag, err)
	}

	ids := make([]int64, len(topic.Docs))
	for i, d := range topic.Docs {
		ids[i] = d.ID
	}
	return &Article{
		Title:      fmt.Sprintf("Wiki: %s", topic.Tag),
		Content:    content,
		SourceDocs: ids,
		Tag:        topic.Tag,
	}, nil
}

// GenerateAll clusters live documents by tag and generates one article per
// cluster, skipping (and reporting, not failing the whole run on) any topic
// whose generation fails -- consistent with spec.md 4.4's "a layer that
// fails never masks the rest of the operation" philosophy applied here to
// a batch of independent articles instead of enrichment layers.
func GenerateAll(ctx context.Context, store DocumentStore, gen *Generator, minClusterSize int) ([]*Article, []error) {
	topics, err := ClusterByTag(ctx, store, minClusterSize)
	if err != nil {
		return nil, []error{err}
	}
	var articles []*Article
	var errs []error
	for _, topic := range topics {
		article, err := gen.Generate(ctx, topic)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		articles = append(articles, article)
	}
	return articles, errs
}
