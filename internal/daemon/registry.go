// Package daemon tracks spawned agent executions across CLI invocations:
// emdx has no long-lived daemon process (spec.md 5's single-threaded,
// cooperative model), so the execution spawner records each child's PID
// here when it starts and removes it when it exits, in the same
// cross-process registry.json the teacher used for its daemon discovery,
// now keyed by execution rather than daemon. `emdx status` and reap_stale
// read execution rows from the database, not this registry.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/emdx-dev/emdx/internal/config"
)

// RegistryEntry tracks one running Execution's OS process.
type RegistryEntry struct {
	ExecutionID int64     `json:"execution_id"`
	PID         int       `json:"pid"`
	WorkingDir  string    `json:"working_dir"`
	StartedAt   time.Time `json:"started_at"`
}

// Registry manages the on-disk execution registry shared by every emdx
// invocation on the machine.
type Registry struct {
	path     string
	lockPath string
	mu       sync.Mutex // in-process mutex; cross-process safety comes from flock
}

// NewRegistry opens the registry at <config dir>/executions.json.
func NewRegistry() (*Registry, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	return &Registry{
		path:     filepath.Join(dir, "executions.json"),
		lockPath: filepath.Join(dir, "executions.lock"),
	}, nil
}

func (r *Registry) withFileLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fl := flock.New(r.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

func (r *Registry) readEntriesLocked() ([]RegistryEntry, error) {
	data, err := os.ReadFile(r.path) // #nosec G304 -- path is derived from config.ConfigDir
	if err != nil {
		if os.IsNotExist(err) {
			return []RegistryEntry{}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(trimSpace(data)) == 0 {
		return []RegistryEntry{}, nil
	}
	var entries []RegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted registry just means executions must be rediscovered.
		return []RegistryEntry{}, nil
	}
	return entries, nil
}

func trimSpace(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b != 0 && b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			out = append(out, b)
		}
	}
	return out
}

func (r *Registry) writeEntriesLocked(entries []RegistryEntry) error {
	if entries == nil {
		entries = []RegistryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "executions-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Register records a running execution's PID and working directory,
// replacing any stale entry for the same execution id.
func (r *Registry) Register(entry RegistryEntry) error {
	return r.withFileLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.ExecutionID != entry.ExecutionID {
				filtered = append(filtered, e)
			}
		}
		filtered = append(filtered, entry)
		return r.writeEntriesLocked(filtered)
	})
}

// Unregister removes the entry for executionID, called once the execution
// completes, fails, or is killed.
func (r *Registry) Unregister(executionID int64) error {
	return r.withFileLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.ExecutionID != executionID {
				filtered = append(filtered, e)
			}
		}
		return r.writeEntriesLocked(filtered)
	})
}

// List returns every registry entry whose process is still alive, pruning
// dead entries from disk as a side effect.
func (r *Registry) List() ([]RegistryEntry, error) {
	var alive []RegistryEntry
	err := r.withFileLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if isProcessAlive(e.PID) {
				alive = append(alive, e)
			}
		}
		if len(alive) != len(entries) {
			if err := r.writeEntriesLocked(alive); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to prune execution registry: %v\n", err)
			}
		}
		return nil
	})
	return alive, err
}

// Clear removes all entries.
func (r *Registry) Clear() error {
	return r.withFileLock(func() error {
		return r.writeEntriesLocked(nil)
	})
}
