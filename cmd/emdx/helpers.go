package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/emdx-dev/emdx/internal/render"
	"github.com/emdx-dev/emdx/internal/types"
)

// readSource drains stdin, reads a file, or passes text through verbatim,
// returning the content together with a kind string ("file", "text" or
// "stdin") naming where it came from (spec.md 4.8's save() source sum type).
func readSource(filePath, inlineText string, stdin io.Reader) (kind string, text string, err error) {
	switch {
	case filePath != "":
		b, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return "", "", fmt.Errorf("read %s: %w", filePath, readErr)
		}
		return "file", string(b), nil
	case inlineText != "":
		return "text", inlineText, nil
	default:
		b, readErr := io.ReadAll(stdin)
		if readErr != nil {
			return "", "", fmt.Errorf("read stdin: %w", readErr)
		}
		return "stdin", string(b), nil
	}
}

// splitTags parses a comma-separated --tags flag value into a trimmed slice.
func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseID accepts either a bare int64 document id or a `#id` form.
func parseID(s string) (int64, error) {
	s = strings.TrimPrefix(s, "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid id", types.ErrNotFound, s)
	}
	return id, nil
}

// emitJSON writes v as a JSON success payload when in --json mode, returning
// true if it did so (callers then skip their Rich/Plain rendering path).
func emitJSON(w io.Writer, v any) bool {
	if outputMode() != render.JSON {
		return false
	}
	_ = render.JSONValue(w, v)
	return true
}

// emitJSONMode reports whether --json is active, for callers (like
// delegate's streaming loop) that need to know before they have a value to
// pass to emitJSON.
func emitJSONMode() bool {
	return outputMode() == render.JSON
}

// confirmDestructive implements spec.md 6's confirmation rule for
// destructive commands: prompt and require "y" when stdin is a TTY,
// auto-confirm when it isn't (scripts, pipes, CI).
func confirmDestructive(stdin io.Reader, prompt string) bool {
	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
