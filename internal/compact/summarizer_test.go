package compact

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emdx-dev/emdx/internal/llm"
	"github.com/emdx-dev/emdx/internal/types"
)

func TestLLMSummarizer_RendersPromptAndInvokes(t *testing.T) {
	// "cat" echoes stdin back on stdout, letting us assert on the rendered
	// prompt without depending on a real agent binary being installed.
	invoker, err := llm.New("cat", time.Second)
	if err != nil {
		t.Fatalf("llm.New: %v", err)
	}
	s := NewLLMSummarizer(invoker, false, "")

	doc := &types.Document{ID: 1, Title: "Deploy runbook", Content: "Run the migration then restart workers."}
	out, err := s.Summarize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(out, doc.Title) {
		t.Errorf("expected rendered prompt to contain title, got %q", out)
	}
	if !strings.Contains(out, doc.Content) {
		t.Errorf("expected rendered prompt to contain content, got %q", out)
	}
}
