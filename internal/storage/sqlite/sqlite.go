// Package sqlite implements storage.Storage on top of a single-file SQLite
// database, using the pure-Go ncruces/go-sqlite3 driver (no cgo), the same
// driver the teacher repo standardizes on.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/emdx-dev/emdx/internal/types"
)

// SQLiteStorage is the concrete storage.Storage implementation.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ interface {
	Close() error
	Path() string
} = (*SQLiteStorage)(nil)

// Open creates the parent directory if needed, opens (or creates) the
// database file, enables foreign-key enforcement, and brings the schema up
// to date via baseSchema + RunMigrations. Mirrors storage.open(path) from
// spec.md 4.1.
func Open(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(path, "?") {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer, a handful of readers: the engine serializes writes
	// regardless, so more than a few open connections just adds contention
	// (spec.md 5).
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)

	if _, err := db.Exec(baseSchema); err != nil {
		db.Close()
		return nil, classify("open:apply-schema", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

func (s *SQLiteStorage) Close() error          { return s.db.Close() }
func (s *SQLiteStorage) Path() string          { return s.path }
func (s *SQLiteStorage) UnderlyingDB() *sql.DB { return s.db }

// withRetry retries a write operation up to 3 times with exponential backoff
// (50ms, 200ms, 500ms) when SQLite reports the database is locked, per
// spec.md 4.1's failure semantics. Grounded on github.com/cenkalti/backoff/v4,
// the retry library carried in the wider example pack (steveyegge/beads).
func withRetry(ctx context.Context, op string, fn func() error) error {
	delays := []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond}
	bo := backoff.NewConstantBackOff(delays[0])
	attempt := 0
	var lastErr error

	policy := backoff.WithMaxRetries(bo, uint64(len(delays)))
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		classified := classify(op, err)
		var serr *types.StorageError
		if errors.As(classified, &serr) && serr.Kind == types.KindLocked {
			if attempt < len(delays) {
				bo.Interval = delays[attempt]
			}
			attempt++
			return classified
		}
		return backoff.Permanent(classified)
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		if lastErr != nil {
			return classify(op, lastErr)
		}
		return err
	}
	return nil
}

// classify maps a driver error into a *types.StorageError with a stable
// kind, so nothing above internal/storage/sqlite ever inspects a driver
// error type directly (spec.md 4.1, 7).
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	kind := types.KindOther
	switch {
	case strings.Contains(msg, "unique"):
		kind = types.KindUniqueViolation
	case strings.Contains(msg, "foreign key"):
		kind = types.KindForeignKeyViolation
	case strings.Contains(msg, "locked"), strings.Contains(msg, "busy"):
		kind = types.KindLocked
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "corrupt"):
		kind = types.KindCorrupt
	}
	return &types.StorageError{Kind: kind, Op: op, Err: err}
}
