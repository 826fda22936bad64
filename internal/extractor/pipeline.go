package extractor

import (
	"context"
	"fmt"
	"time"
)

// Pipeline runs every registered Extractor over a document's text and
// merges their entities, keeping the highest-confidence hit per name.
type Pipeline struct {
	extractors []Extractor
}

// NewPipeline builds the default pipeline (regex-only: a real NLP-backed
// extractor can be registered the same way via an additional Extractor
// without changing Run's merge logic).
func NewPipeline() *Pipeline {
	return &Pipeline{
		extractors: []Extractor{
			NewRegexExtractor(),
		},
	}
}

// ExtractionResult contains all extracted information and metadata from one
// Pipeline.Run call.
type ExtractionResult struct {
	Entities      []Entity
	Relationships []Relationship
	Duration      time.Duration
	Extractor     string
}

// Run extracts entities with every registered extractor, merges them by
// name (higher confidence wins), and separately extracts explicit
// relationships.
func (p *Pipeline) Run(ctx context.Context, text string) (*ExtractionResult, error) {
	start := time.Now()

	allEntities := make(map[string]Entity)
	var names []string

	for _, ext := range p.extractors {
		entities, err := ext.Extract(text)
		if err != nil {
			fmt.Printf("extractor %s failed: %v\n", ext.Name(), err)
			continue
		}
		for _, e := range entities {
			if existing, ok := allEntities[e.Name]; !ok || e.Confidence > existing.Confidence {
				if !ok {
					names = append(names, e.Name)
				}
				allEntities[e.Name] = e
			}
		}
	}

	resultEntities := make([]Entity, 0, len(allEntities))
	for _, name := range names {
		resultEntities = append(resultEntities, allEntities[name])
	}

	relationships := ExtractRelationships(text)

	return &ExtractionResult{
		Entities:      resultEntities,
		Relationships: relationships,
		Duration:      time.Since(start),
		Extractor:     "regex",
	}, nil
}
