package extractor

import (
	"context"
	"testing"
)

func TestPipeline_ExtractsHeadingsProperNounsAndCode(t *testing.T) {
	pipeline := NewPipeline()
	text := "" +
		"# Deploy Runbook\n" +
		"\n" +
		"We fixed a bug in Manage Columns Modal.\n" +
		"Run `go test ./...` before merging.\n" +
		"\n" +
		"- Manage Columns Modal -> useSortable (uses)\n" +
		"- nginx -> nginx.conf (configures)\n"

	result, err := pipeline.Run(context.Background(), text)
	if err != nil {
		t.Fatalf("Pipeline.Run failed: %v", err)
	}

	want := map[string]string{
		"Deploy Runbook":       TypeHeading,
		"Manage Columns Modal": TypeProperNoun,
		"go test ./...":        TypeCode,
	}
	found := map[string]bool{}
	for _, e := range result.Entities {
		if wantType, ok := want[e.Name]; ok {
			found[e.Name] = true
			if e.Type != wantType {
				t.Errorf("entity %q: expected type %s, got %s", e.Name, wantType, e.Type)
			}
			if e.Source != "regex" {
				t.Errorf("entity %q: expected source regex, got %s", e.Name, e.Source)
			}
		}
	}
	for name := range want {
		if !found[name] {
			t.Errorf("expected entity %q not found in %+v", name, result.Entities)
		}
	}

	if len(result.Relationships) != 2 {
		t.Errorf("expected 2 relationships, got %d: %+v", len(result.Relationships), result.Relationships)
	}
}
