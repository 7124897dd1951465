package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestApplyRunsMigrationsInOrder(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0002_add_column.sql": {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;")},
		"0001_init.sql":       {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
	}

	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO items (id, name) VALUES (1, 'a')"); err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if count != 2 {
		t.Fatalf("ledger rows = %d, want 2", count)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0001_init.sql": {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
	}

	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger rows = %d, want 1", count)
	}
}

func TestApplySkipsEmptyAndNonSQLFiles(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0001_init.sql":  {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
		"0002_blank.sql": {Data: []byte("   \n")},
		"README.md":      {Data: []byte("not a migration")},
	}

	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger rows = %d, want 1", count)
	}
}

func TestApplyFailsOnBrokenSQL(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0001_broken.sql": {Data: []byte("CREATE TABL items;")},
	}
	if err := Apply(sqlDB, migrations); err == nil {
		t.Fatal("expected error for broken migration")
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if err := Apply(nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}
