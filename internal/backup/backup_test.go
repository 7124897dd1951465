package backup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guild.db")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Dir: "x"}); err == nil {
		t.Fatal("expected error for missing source path")
	}
	if _, err := New(Config{SourcePath: "x"}); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestSnapshotCopiesWithTimestampedName(t *testing.T) {
	source := writeSource(t, "database contents")
	dir := t.TempDir()
	m, err := New(Config{SourcePath: source, Dir: dir, Keep: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	name, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !strings.HasPrefix(name, "guild_") || !strings.HasSuffix(name, ".db") {
		t.Fatalf("name = %q, want guild_<timestamp>.db", name)
	}

	copied, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(copied) != "database contents" {
		t.Fatalf("copy content = %q", copied)
	}
}

func TestSnapshotRotatesOldCopies(t *testing.T) {
	source := writeSource(t, "x")
	dir := t.TempDir()

	// Pre-seed older snapshots; the timestamped names sort chronologically.
	old := []string{
		"guild_2025-01-01_00-00-00.db",
		"guild_2025-01-02_00-00-00.db",
	}
	for _, name := range old {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	m, err := New(Config{SourcePath: source, Dir: dir, Keep: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("dir has %d files, want 2 after rotation", len(entries))
	}
	for _, entry := range entries {
		if entry.Name() == old[0] {
			t.Fatal("oldest snapshot survived rotation")
		}
	}
}

func TestSnapshotIgnoresUnrelatedFiles(t *testing.T) {
	source := writeSource(t, "x")
	dir := t.TempDir()
	unrelated := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unrelated, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write unrelated: %v", err)
	}

	m, err := New(Config{SourcePath: source, Dir: dir, Keep: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("unrelated file was touched: %v", err)
	}
}

func TestSnapshotCheckpointsWALBeforeCopy(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "live.db")

	sqlDB, err := sql.Open("sqlite", source)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqlDB.Close()

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("enable wal: %v", err)
	}
	if _, err := sqlDB.Exec("CREATE TABLE entries (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO entries (id) VALUES (1), (2), (3)"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	backupDir := t.TempDir()
	m, err := New(Config{SourcePath: source, DB: sqlDB, Dir: backupDir, Keep: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// The copy must contain the committed rows even though they were
	// written through the WAL.
	copyDB, err := sql.Open("sqlite", filepath.Join(backupDir, name))
	if err != nil {
		t.Fatalf("open copy: %v", err)
	}
	defer copyDB.Close()

	var count int
	if err := copyDB.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if count != 3 {
		t.Fatalf("copy rows = %d, want 3", count)
	}
}

func TestKeepDefaultsToTwo(t *testing.T) {
	m, err := New(Config{SourcePath: "a.db", Dir: "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.cfg.Keep != 2 {
		t.Fatalf("Keep = %d, want 2", m.cfg.Keep)
	}
}

func TestSnapshotFailsWhenSourceMissing(t *testing.T) {
	m, err := New(Config{SourcePath: filepath.Join(t.TempDir(), "absent.db"), Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Snapshot(); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRunReturnsWithoutInterval(t *testing.T) {
	m, err := New(Config{SourcePath: "a.db", Dir: "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with a zero interval")
	}
}
