// Package backup implements the daily database backup and logarithmic
// retention policy described in spec.md 4.7: a dated copy of the database
// is made with the storage engine's own online-backup primitive, and older
// copies are thinned to roughly 7 daily + 4 weekly + 12 monthly + 2 yearly
// snapshots rather than kept forever.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"
)

const dateLayout = "20060102"

var backupFilePattern = regexp.MustCompile(`^emdx-(\d{8})\.db$`)

// Source is the narrow slice of storage.Storage a backup run needs: the
// underlying *sql.DB to run VACUUM INTO against.
type Source interface {
	UnderlyingDB() *sql.DB
}

// Manager runs daily backups of a Source's database into dir and prunes
// old snapshots per the retention policy.
type Manager struct {
	source Source
	dir    string
	logger *zap.Logger
}

// NewManager builds a Manager. dir is created if absent.
func NewManager(source Source, dir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Manager{source: source, dir: dir, logger: logger}, nil
}

// RunDaily makes one dated backup (a no-op if today's backup already
// exists, so a crashed/retried daily cron doesn't produce duplicates) and
// then applies retention. It returns the path of today's backup.
func (m *Manager) RunDaily(ctx context.Context, now time.Time) (string, error) {
	name := fmt.Sprintf("emdx-%s.db", now.UTC().Format(dateLayout))
	dest := filepath.Join(m.dir, name)

	if _, err := os.Stat(dest); err == nil {
		m.logger.Info("backup already exists for today, skipping", zap.String("path", dest))
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat existing backup: %w", err)
	} else {
		// VACUUM INTO is SQLite's online-backup primitive: it produces a
		// consistent, compacted snapshot without locking out writers for
		// more than the duration of the copy.
		if _, err := m.source.UnderlyingDB().ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
			return "", fmt.Errorf("vacuum into %s: %w", dest, err)
		}
		m.logger.Info("wrote daily backup", zap.String("path", dest))
	}

	pruned, err := m.prune(now)
	if err != nil {
		return dest, fmt.Errorf("prune backups: %w", err)
	}
	for _, p := range pruned {
		m.logger.Info("pruned backup", zap.String("path", p))
	}
	return dest, nil
}

type backupFile struct {
	path string
	date time.Time
}

func (m *Manager) listBackups() ([]backupFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	var out []backupFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := backupFilePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		d, err := time.Parse(dateLayout, match[1])
		if err != nil {
			continue
		}
		out = append(out, backupFile{path: filepath.Join(m.dir, e.Name()), date: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.After(out[j].date) })
	return out, nil
}

// Retention policy: 7 daily, 4 weekly, 12 monthly, 2 yearly (spec.md 4.7),
// at most 25 files kept at steady state. A backup earns its place in the
// newest tier it qualifies for; once a tier's quota is filled, further
// backups in the same bucket are pruned.
const (
	keepDaily   = 7
	keepWeekly  = 4
	keepMonthly = 12
	keepYearly  = 2
)

// prune deletes every backup file not selected by the retention policy,
// returning the paths removed.
func (m *Manager) prune(now time.Time) ([]string, error) {
	backups, err := m.listBackups()
	if err != nil {
		return nil, err
	}

	keep := map[string]bool{}
	claimDailies(backups, keep)
	claimBucket(backups, keep, isoWeekKey, keepWeekly)
	claimBucket(backups, keep, monthKey, keepMonthly)
	claimBucket(backups, keep, yearKey, keepYearly)

	var removed []string
	for _, b := range backups {
		if keep[b.path] {
			continue
		}
		if err := os.Remove(b.path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", b.path, err)
		}
		removed = append(removed, b.path)
	}
	return removed, nil
}

// claimDailies keeps the most recent keepDaily backups outright, one per
// calendar day (they already are one-per-day by construction).
func claimDailies(backups []backupFile, keep map[string]bool) {
	for i, b := range backups {
		if i >= keepDaily {
			break
		}
		keep[b.path] = true
	}
}

// claimBucket keeps the newest unclaimed backup in each of the first limit
// distinct buckets bucketFn produces, scanning backups newest-first.
func claimBucket(backups []backupFile, keep map[string]bool, bucketFn func(time.Time) string, limit int) {
	seen := map[string]bool{}
	for _, b := range backups {
		if keep[b.path] {
			continue
		}
		key := bucketFn(b.date)
		if seen[key] {
			continue
		}
		if len(seen) >= limit {
			continue
		}
		seen[key] = true
		keep[b.path] = true
	}
}

func isoWeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func yearKey(t time.Time) string {
	return t.Format("2006")
}
