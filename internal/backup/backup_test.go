package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emdx-dev/emdx/internal/storage/sqlite"
)

func TestRunDailyCreatesBackupFile(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	dir := t.TempDir()
	m, err := NewManager(store, dir, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	path, err := m.RunDaily(ctx, now)
	if err != nil {
		t.Fatalf("run daily: %v", err)
	}
	if filepath.Base(path) != "emdx-20260731.db" {
		t.Fatalf("unexpected backup filename: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat backup: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a non-empty backup file")
	}
}

func TestRunDailySkipsExistingBackupForToday(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	dir := t.TempDir()
	m, err := NewManager(store, dir, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	if _, err := m.RunDaily(ctx, now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	path := filepath.Join(dir, "emdx-20260731.db")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat after first run: %v", err)
	}

	if _, err := m.RunDaily(ctx, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("second run: %v", err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat after second run: %v", err)
	}
	if !before.ModTime().Equal(after.ModTime()) {
		t.Fatal("expected second same-day run to leave the existing backup untouched")
	}
}

func touchBackup(t *testing.T, dir string, date time.Time) {
	t.Helper()
	name := filepath.Join(dir, "emdx-"+date.Format(dateLayout)+".db")
	if err := os.WriteFile(name, []byte("x"), 0o600); err != nil {
		t.Fatalf("write fixture backup: %v", err)
	}
}

// TestPruneKeepsRecentDailies exercises the daily tier: the 7 most recent
// daily backups all survive a prune.
func TestPruneKeepsRecentDailies(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	m, err := NewManager(store, dir, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		touchBackup(t, dir, now.AddDate(0, 0, -i))
	}

	if _, err := m.prune(now); err != nil {
		t.Fatalf("prune: %v", err)
	}
	remaining, err := m.listBackups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(remaining) < keepDaily {
		t.Fatalf("expected at least %d backups to survive, got %d", keepDaily, len(remaining))
	}
	for i := 0; i < keepDaily; i++ {
		want := filepath.Join(dir, "emdx-"+now.AddDate(0, 0, -i).Format(dateLayout)+".db")
		if !containsPath(remaining, want) {
			t.Fatalf("expected the most recent %d dailies to survive, missing %s", keepDaily, want)
		}
	}
}

// TestPruneConvergesToSteadyState exercises the retention policy under
// realistic daily cadence: with 800 consecutive daily backups, the prune
// thins them down to roughly the 7+4+12+2 tier budget and the single
// oldest snapshot does not survive (it's never the newest representative
// of its own yearly bucket).
func TestPruneConvergesToSteadyState(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	m, err := NewManager(store, dir, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	const days = 800
	for i := 0; i < days; i++ {
		touchBackup(t, dir, now.AddDate(0, 0, -i))
	}

	if _, err := m.prune(now); err != nil {
		t.Fatalf("prune: %v", err)
	}
	remaining, err := m.listBackups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}

	oldest := filepath.Join(dir, "emdx-"+now.AddDate(0, 0, -(days-1)).Format(dateLayout)+".db")
	if containsPath(remaining, oldest) {
		t.Fatalf("expected the oldest of %d daily backups to be pruned, found %v", days, remaining)
	}
	budget := keepDaily + keepWeekly + keepMonthly + keepYearly
	if len(remaining) > budget {
		t.Fatalf("expected at most %d survivors, got %d", budget, len(remaining))
	}
}

func containsPath(backups []backupFile, path string) bool {
	for _, b := range backups {
		if b.path == path {
			return true
		}
	}
	return false
}
