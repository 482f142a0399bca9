package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const scriptCount = 2

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestRun(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db); err != nil {
		t.Fatalf("first migration run: %v", err)
	}

	version, err := Version(db)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != scriptCount {
		t.Errorf("version = %d, want %d", version, scriptCount)
	}

	tables := []string{"runs", "kv_store", "profile_memories", "_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	version, err := Version(db)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != scriptCount {
		t.Errorf("version = %d, want %d", version, scriptCount)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != scriptCount {
		t.Errorf("migration count = %d, want %d", count, scriptCount)
	}
}

func TestPending(t *testing.T) {
	db := openTestDB(t)

	if err := ensureMigrationsTable(db); err != nil {
		t.Fatalf("ensure migrations table: %v", err)
	}

	pending, err := Pending(db)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != scriptCount {
		t.Errorf("pending count = %d, want %d", len(pending), scriptCount)
	}

	if err := Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pending, err = Pending(db)
	if err != nil {
		t.Fatalf("get pending after run: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending count after run = %d, want 0", len(pending))
	}
}

func TestVersion_EmptyDB(t *testing.T) {
	db := openTestDB(t)

	if err := ensureMigrationsTable(db); err != nil {
		t.Fatalf("ensure migrations table: %v", err)
	}

	version, err := Version(db)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
}
