// Package render implements the Plain/Rich/Json output shapes spec.md 4.8
// requires every Command Facade operation to support. The facade itself
// returns typed values and does no terminal I/O (spec.md's "Global mutable
// Console" design note); cmd/emdx picks one of these at the boundary,
// grounded on the teacher's internal/ui lipgloss styling.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Mode selects one of the three renderers a facade caller may request.
type Mode string

const (
	Plain Mode = "plain"
	Rich  Mode = "rich"
	JSON  Mode = "json"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

// Heading renders a section title: bold+colored in Rich, unadorned text in
// Plain. Callers only use this for Rich/Plain; JSON output never goes
// through render functions -- it's produced by json.Marshal directly below.
func Heading(mode Mode, w io.Writer, text string) {
	if mode == Rich {
		fmt.Fprintln(w, headingStyle.Render(text))
		return
	}
	fmt.Fprintln(w, text)
}

// Muted renders de-emphasized text (timestamps, ids) in Rich, plain text
// otherwise.
func Muted(mode Mode, s string) string {
	if mode == Rich {
		return mutedStyle.Render(s)
	}
	return s
}

// Accent renders emphasized inline text (tags, scores) in Rich.
func Accent(mode Mode, s string) string {
	if mode == Rich {
		return accentStyle.Render(s)
	}
	return s
}

// Markdown renders a document body through glamour's term renderer in Rich
// mode, falling back to the raw source in Plain mode. A glamour failure
// (e.g. a malformed code fence) degrades to the raw source rather than
// failing the view -- a document is still readable even if it can't be
// prettified.
func Markdown(mode Mode, w io.Writer, source string) error {
	if mode != Rich {
		_, err := fmt.Fprintln(w, source)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(0))
	if err != nil {
		_, werr := fmt.Fprintln(w, source)
		return werr
	}
	out, err := r.Render(source)
	if err != nil {
		_, werr := fmt.Fprintln(w, source)
		return werr
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// JSONValue marshals v as pretty-printed JSON, the shape every command's
// --json mode uses for success output (spec.md 6's CLI surface).
func JSONValue(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ErrorEnvelope is the shape --json mode emits on failure, per spec.md 7:
// `{"error": {"kind": ..., "message": ...}}`.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the classified kind and human message for a failed
// operation.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JSONError writes an ErrorEnvelope for kind/message to w.
func JSONError(w io.Writer, kind, message string) error {
	return JSONValue(w, ErrorEnvelope{Error: ErrorBody{Kind: kind, Message: message}})
}
