package facade

import (
	"context"

	"github.com/emdx-dev/emdx/internal/types"
	"github.com/emdx-dev/emdx/internal/wiki"
)

// WikiGenerate clusters live documents by shared tag and generates one
// synthesized article per cluster via gen, saving each as a doc_type=wiki
// document (spec.md 4.8's wiki_* family). Articles whose generation failed
// are reported but never abort the batch.
func (f *Facade) WikiGenerate(ctx context.Context, gen *wiki.Generator, minClusterSize int) ([]*types.Document, []error) {
	articles, errs := wiki.GenerateAll(ctx, f.Store, gen, minClusterSize)
	var saved []*types.Document
	for _, article := range articles {
		result, err := f.Save(ctx, SaveArgs{
			Source:   Source{Kind: SourceText, Text: article.Content},
			Title:    article.Title,
			Tags:     []string{"wiki", article.Tag},
			DocType:  types.DocTypeWiki,
			AutoLink: true,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		saved = append(saved, result.Doc)
	}
	return saved, errs
}
