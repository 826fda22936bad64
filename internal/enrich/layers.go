package enrich

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/emdx-dev/emdx/internal/embed"
	"github.com/emdx-dev/emdx/internal/types"
)

// titleMatchLink scans doc's content for exact, case-insensitive,
// word-boundary occurrences of every other live document's title and links
// each match (spec.md 4.4 layer 1).
func (p *Pipeline) titleMatchLink(ctx context.Context, doc *types.Document) error {
	titles, err := p.store.ListAllTitles(ctx)
	if err != nil {
		return err
	}
	for otherID, title := range titles {
		if otherID == doc.ID {
			continue
		}
		title = strings.TrimSpace(title)
		if len(title) < 3 {
			continue
		}
		if !titleOccursIn(title, doc.Content) {
			continue
		}
		if err := p.addLink(ctx, doc.ID, otherID, types.LinkTitleMatch, 0); err != nil {
			return err
		}
	}
	return nil
}

func titleOccursIn(title, content string) bool {
	pattern := `(?i)\b` + regexp.QuoteMeta(title) + `\b`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(content)
}

// entityLink extracts named entities from doc's content, persists them, and
// links doc to every other document sharing at least one heading- or
// proper-noun-typed entity (spec.md 4.4 layer 2).
func (p *Pipeline) entityLink(ctx context.Context, doc *types.Document) error {
	result, err := p.extractor.Run(ctx, doc.Content)
	if err != nil {
		return err
	}

	entities := make([]types.Entity, len(result.Entities))
	for i, e := range result.Entities {
		entities[i] = types.Entity{DocID: doc.ID, Name: e.Name, EntityType: e.Type}
	}
	if err := p.store.ReplaceEntities(ctx, doc.ID, entities); err != nil {
		return err
	}

	others, err := p.store.DocsSharingEntity(ctx, doc.ID, []string{types.EntityHeading, types.EntityProperNoun})
	if err != nil {
		return err
	}
	for _, otherID := range others {
		if err := p.addLink(ctx, doc.ID, otherID, types.LinkEntity, 0); err != nil {
			return err
		}
	}
	return nil
}

// semanticLink chunks and embeds doc's content, replaces its stored chunks,
// and links doc to every other document whose best-matching chunk exceeds
// the configured similarity threshold (spec.md 4.4 layer 3).
func (p *Pipeline) semanticLink(ctx context.Context, doc *types.Document) error {
	texts := splitChunks(doc.Content)
	chunks := make([]types.Chunk, len(texts))
	for i, text := range texts {
		vec, err := p.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		chunks[i] = types.Chunk{DocID: doc.ID, ChunkIndex: i, Text: text, Embedding: vec, TokenCount: len(strings.Fields(text))}
	}
	if err := p.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	existing, err := p.store.AllChunks(ctx)
	if err != nil {
		return err
	}

	best := map[int64]float64{}
	for _, mine := range chunks {
		for _, other := range existing {
			if other.DocID == doc.ID {
				continue
			}
			sim := embed.Cosine(mine.Embedding, other.Embedding)
			if cur, ok := best[other.DocID]; !ok || sim > cur {
				best[other.DocID] = sim
			}
		}
	}

	for otherID, score := range best {
		if score < p.threshold {
			continue
		}
		if err := p.addLink(ctx, doc.ID, otherID, types.LinkSemantic, score); err != nil {
			return err
		}
	}
	return nil
}

// addLink wraps storage.AddLink, treating duplicate or self links as
// already-satisfied rather than errors since enrichment passes re-run on
// every edit.
func (p *Pipeline) addLink(ctx context.Context, sourceID, targetID int64, kind types.LinkKind, score float64) error {
	err := p.store.AddLink(ctx, &types.DocumentLink{
		SourceDocID:     sourceID,
		TargetDocID:     targetID,
		Kind:            kind,
		SimilarityScore: score,
	})
	if errors.Is(err, types.ErrDuplicateLink) || errors.Is(err, types.ErrSelfLink) || errors.Is(err, types.ErrNotFound) {
		return nil
	}
	return err
}
