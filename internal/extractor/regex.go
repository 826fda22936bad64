package extractor

import (
	"regexp"
	"strings"
)

// Entity types recognised by RegexExtractor, matching spec.md 4.4's
// "headings, capitalised multi-word nouns, code identifiers" and the
// entities table's entity_type column.
const (
	TypeHeading    = "heading"
	TypeProperNoun = "proper_noun"
	TypeCode       = "code"
)

var (
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	properNounPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*){1,4})\b`)
	codeSpanPattern   = regexp.MustCompile("`([^`\n]+)`")
)

// RegexExtractor finds markdown headings, Title-Case multi-word nouns, and
// backtick-delimited code identifiers -- the three entity kinds spec.md 4.4
// names explicitly, with no domain-specific vocabulary baked in.
type RegexExtractor struct{}

// NewRegexExtractor builds the default, dependency-free extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Name identifies this extractor for ExtractionResult.Extractor.
func (r *RegexExtractor) Name() string {
	return "regex"
}

// Extract implements the Extractor interface.
func (r *RegexExtractor) Extract(text string) ([]Entity, error) {
	seen := make(map[string]bool)
	var entities []Entity

	add := func(name, entityType string, confidence float64) {
		name = strings.TrimSpace(name)
		if len(name) < 3 {
			return
		}
		key := entityType + ":" + strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, Entity{Name: name, Type: entityType, Confidence: confidence, Source: "regex"})
	}

	for _, m := range headingPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], TypeHeading, 0.95)
	}
	for _, m := range properNounPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], TypeProperNoun, 0.7)
	}
	for _, m := range codeSpanPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], TypeCode, 0.9)
	}

	return entities, nil
}

// ExtractRelationships finds explicit "- EntityA -> EntityB (relationship)"
// lines, the one structured-relationship convention worth recognising even
// though entity relationships are otherwise implicit in shared entity
// links.
func ExtractRelationships(text string) []Relationship {
	relPattern := regexp.MustCompile(`(?m)^\s*-\s+(.+?)\s+->\s+(.+?)(?:\s+\(([^)]+)\))?\s*$`)
	var rels []Relationship
	for _, match := range relPattern.FindAllStringSubmatch(text, -1) {
		relType := "depends_on"
		if len(match) > 3 && match[3] != "" {
			relType = strings.TrimSpace(match[3])
		}
		rels = append(rels, Relationship{
			FromEntity: strings.ToLower(strings.TrimSpace(match[1])),
			ToEntity:   strings.ToLower(strings.TrimSpace(match[2])),
			Type:       relType,
		})
	}
	return rels
}
