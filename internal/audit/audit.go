// Package audit appends one JSON line per LLM call or spawned execution to
// a durable trail, the same flexible Kind+Extra envelope the teacher uses
// for its interactions log, retargeted from .beads/ to emdx's config
// directory.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/emdx-dev/emdx/internal/config"
)

// FileName is the audit log file name stored under the config directory.
const (
	FileName = "audit.jsonl"
	idPrefix = "evt-"
)

// Entry is a generic append-only audit event: use Kind + typed fields for
// the common cases (llm call, execution spawn/finish) and Extra for
// anything else.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	Actor string `json:"actor,omitempty"`
	DocID int64  `json:"doc_id,omitempty"`
	TaskID int64 `json:"task_id,omitempty"`

	// LLM call
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`

	// Execution lifecycle
	ExecutionID int64 `json:"execution_id,omitempty"`
	ExitCode    *int  `json:"exit_code,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Path resolves the audit log file under config.ConfigDir().
func Path() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// EnsureFile creates the audit log (and its parent directory) if absent.
func EnsureFile() (string, error) {
	p, err := Path()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if _, statErr := os.Stat(p); statErr == nil {
		return p, nil
	} else if !os.IsNotExist(statErr) {
		return "", fmt.Errorf("stat audit log: %w", statErr)
	}
	if err := os.WriteFile(p, []byte{}, 0644); err != nil { // nolint:gosec // local trail, not secret material
		return "", fmt.Errorf("create audit log: %w", err)
	}
	return p, nil
}

// Append writes e as a single JSON line, assigning an ID and timestamp if
// absent. This is append-only: callers must never rewrite existing lines.
func Append(e *Entry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil entry")
	}
	if e.Kind == "" {
		return "", fmt.Errorf("kind is required")
	}

	p, err := EnsureFile()
	if err != nil {
		return "", err
	}

	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	} else {
		e.CreatedAt = e.CreatedAt.UTC()
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // nolint:gosec // intended permissions
	if err != nil {
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("write audit entry: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flush audit log: %w", err)
	}

	return e.ID, nil
}

// newID generates a short, collision-resistant audit entry id: the first
// segment of a random UUIDv4, prefixed for readability in the jsonl trail.
func newID() string {
	return idPrefix + uuid.NewString()[:8]
}
