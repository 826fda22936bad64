package types

import "time"

// TagFilterMode selects how a set of tag names combines in a search filter.
type TagFilterMode string

const (
	TagFilterAND TagFilterMode = "and"
	TagFilterOR  TagFilterMode = "or"
	TagFilterNOT TagFilterMode = "not"
)

// TagFilter narrows results to documents matching a tag set under a mode.
type TagFilter struct {
	Mode TagFilterMode
	Tags []string
}

// SearchFilter is the common post-filter applied after ranking in the
// Search Pipeline (spec.md 4.5 step 5).
type SearchFilter struct {
	Tags            []TagFilter
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	ModifiedAfter   *time.Time
	ModifiedBefore  *time.Time
	DocType         DocType
	HasDocType      bool
	IncludeQA       bool
	Project         string
}

// SearchMode selects which half(s) of the hybrid pipeline run.
type SearchMode string

const (
	ModeKeyword  SearchMode = "keyword"
	ModeSemantic SearchMode = "semantic"
	ModeHybrid   SearchMode = "hybrid"
)

// WorkFilter narrows the ready() query (spec.md 4.7).
type WorkFilter struct {
	CategoryKey string
	EpicKey     string
}
