package compact

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/emdx-dev/emdx/internal/audit"
	"github.com/emdx-dev/emdx/internal/llm"
	"github.com/emdx-dev/emdx/internal/types"
)

var summaryPrompt = template.Must(template.New("compact").Parse(
	`Summarize the following document in a few sentences, preserving any ` +
		`concrete facts, decisions, or numbers. Respond with the summary only.

Title: {{.Title}}

{{.Content}}
`))

// LLMSummarizer calls an llm.Invoker to produce a document summary. It is
// the concrete Summarizer the facade wires in place of a DryRun compactor.
type LLMSummarizer struct {
	invoker      *llm.Invoker
	auditEnabled bool
	auditActor   string
}

// NewLLMSummarizer wraps invoker, optionally recording every call to the
// audit trail.
func NewLLMSummarizer(invoker *llm.Invoker, auditEnabled bool, auditActor string) *LLMSummarizer {
	return &LLMSummarizer{invoker: invoker, auditEnabled: auditEnabled, auditActor: auditActor}
}

// Summarize renders summaryPrompt for doc and invokes the configured LLM
// command, auditing the call when enabled.
func (s *LLMSummarizer) Summarize(ctx context.Context, doc *types.Document) (string, error) {
	var buf bytes.Buffer
	if err := summaryPrompt.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render compact prompt: %w", err)
	}
	prompt := buf.String()

	response, err := s.invoker.Invoke(ctx, prompt)

	if s.auditEnabled {
		entry := &audit.Entry{
			Kind:     "llm_compact",
			Actor:    s.auditActor,
			DocID:    doc.ID,
			Prompt:   prompt,
			Response: response,
		}
		if err != nil {
			entry.Error = err.Error()
		}
		_, _ = audit.Append(entry)
	}

	if err != nil {
		return "", err
	}
	return response, nil
}
