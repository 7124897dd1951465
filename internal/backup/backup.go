// Package backup snapshots the SQLite file on a schedule and rotates old
// copies.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config controls the snapshot schedule and retention.
type Config struct {
	// SourcePath is the database file to snapshot.
	SourcePath string
	// DB, when set, is checkpointed before each copy so commits still
	// sitting in the WAL reach the main file.
	DB *sql.DB
	// Dir receives the timestamped copies.
	Dir string
	// Keep is how many copies to retain; older ones are deleted. Zero or
	// negative keeps two.
	Keep int
	// Interval between scheduled snapshots. Zero disables the schedule;
	// manual snapshots still work.
	Interval time.Duration
}

// Manager performs snapshots.
type Manager struct {
	cfg Config
}

// New creates a backup manager.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.SourcePath) == "" {
		return nil, fmt.Errorf("source path is required")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("backup dir is required")
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 2
	}
	return &Manager{cfg: cfg}, nil
}

// Run executes scheduled snapshots until the context ends. It returns
// immediately when no interval is configured.
func (m *Manager) Run(ctx context.Context) {
	if m.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if name, err := m.Snapshot(); err != nil {
				log.Printf("scheduled backup: %v", err)
			} else {
				log.Printf("scheduled backup created: %s", name)
			}
		}
	}
}

// Snapshot copies the database file into the backup dir with a timestamped
// name, prunes copies beyond the retention count, and returns the created
// file name.
func (m *Manager) Snapshot() (string, error) {
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	if m.cfg.DB != nil {
		if _, err := m.cfg.DB.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return "", fmt.Errorf("checkpoint wal: %w", err)
		}
	}

	base := filepath.Base(m.cfg.SourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().UTC().Format("2006-01-02_15-04-05"), ext)
	target := filepath.Join(m.cfg.Dir, name)

	if err := copyFile(m.cfg.SourcePath, target); err != nil {
		return "", fmt.Errorf("copy database: %w", err)
	}

	if err := m.rotate(stem, ext); err != nil {
		return name, fmt.Errorf("rotate backups: %w", err)
	}
	return name, nil
}

// rotate deletes the oldest snapshots beyond the retention count. The
// timestamped naming makes lexicographic order chronological.
func (m *Manager) rotate(stem, ext string) error {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return err
	}

	var snapshots []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, stem+"_") && strings.HasSuffix(name, ext) {
			snapshots = append(snapshots, name)
		}
	}
	sort.Strings(snapshots)

	for len(snapshots) > m.cfg.Keep {
		oldest := snapshots[0]
		snapshots = snapshots[1:]
		if err := os.Remove(filepath.Join(m.cfg.Dir, oldest)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
