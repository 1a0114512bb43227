package repositories

import (
	"database/sql"
	"testing"

	"github.com/ipodkit/shuffleport/internal/shared"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestNextSequence(t *testing.T) {
	db := testDB(t)

	first, err := NextSequence(db, "sync_runs")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	second, err := NextSequence(db, "sync_runs")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if first != 1 || second != 2 {
		t.Errorf("sequences = %d, %d", first, second)
	}

	// Each table counts independently.
	other, err := NextSequence(db, "file_states")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if other != 1 {
		t.Errorf("file_states sequence = %d, want 1", other)
	}
}
