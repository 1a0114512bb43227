package shared

import (
	"database/sql"
	"testing"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	return true
}

func TestRunMigrations(t *testing.T) {
	db := testDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	for _, table := range []string{"schema_migrations", "sync_runs", "sync_runs_sequence", "file_states", "file_states_sequence"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	var value int
	if err := db.QueryRow("SELECT value FROM sync_runs_sequence WHERE id = 1").Scan(&value); err != nil {
		t.Fatalf("sequence row not seeded: %v", err)
	}
	if value != 0 {
		t.Errorf("sequence seed = %d, want 0", value)
	}

	// Idempotent: a second run applies nothing and fails nothing.
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if applied != 1 {
		t.Errorf("applied migrations = %d, want 1", applied)
	}
}

func TestRollbackMigration(t *testing.T) {
	db := testDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if err := RollbackMigration(db); err != nil {
		t.Fatalf("RollbackMigration failed: %v", err)
	}

	if tableExists(t, db, "sync_runs") {
		t.Error("sync_runs still exists after rollback")
	}

	if err := RollbackMigration(db); err == nil {
		t.Error("expected error with nothing to roll back")
	}
}

func TestNewDatabase(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	defer db.Close()

	ConfigureDatabase(db, 10, 5)
	if err := db.Ping(); err != nil {
		t.Errorf("Ping failed after configure: %v", err)
	}
}
