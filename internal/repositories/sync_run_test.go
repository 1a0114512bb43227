package repositories

import (
	"testing"

	"github.com/ipodkit/shuffleport/internal/models"
)

func TestSyncRunRepository(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		repo := NewSyncRunRepository(testDB(t))

		run := models.NewSyncRun(0, "/mnt/ipod", "/srv/music")
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if run.ID() == "" || run.Sequence() != 1 {
			t.Errorf("run = id %q seq %d", run.ID(), run.Sequence())
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.DevicePath() != "/mnt/ipod" || got.Status() != models.SyncStatusRunning {
			t.Errorf("got = %q %q", got.DevicePath(), got.Status())
		}
		if got.FinishedAt() != nil {
			t.Error("running run should have no finish time")
		}
	})

	t.Run("begin and finish", func(t *testing.T) {
		repo := NewSyncRunRepository(testDB(t))

		run, err := repo.Begin("/mnt/ipod", "/srv/music")
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}

		if err := repo.Finish(run, models.SyncStatusCompleted, 12, 3, 0, 1, 8192); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status() != models.SyncStatusCompleted {
			t.Errorf("Status = %q", got.Status())
		}
		if got.Copied() != 12 || got.Pruned() != 1 || got.BytesCopied() != 8192 {
			t.Errorf("counters = %d/%d/%d", got.Copied(), got.Pruned(), got.BytesCopied())
		}
		if got.FinishedAt() == nil {
			t.Error("finished run should carry a finish time")
		}
	})

	t.Run("update requires an existing row", func(t *testing.T) {
		repo := NewSyncRunRepository(testDB(t))

		run := models.NewSyncRun(1, "/mnt/ipod", "/srv/music")
		run.SetID("no-such-id")
		if err := repo.Update(run); err == nil {
			t.Error("expected error updating a missing run")
		}
	})

	t.Run("delete hides the run", func(t *testing.T) {
		repo := NewSyncRunRepository(testDB(t))

		run, err := repo.Begin("/mnt/ipod", "/srv/music")
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("deleted run should not be found")
		}
		if err := repo.Delete(run.ID()); err == nil {
			t.Error("second delete should fail")
		}
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		repo := NewSyncRunRepository(testDB(t))

		a, _ := repo.Begin("/mnt/ipod", "/srv/music")
		b, _ := repo.Begin("/mnt/ipod", "/srv/music")
		c, _ := repo.Begin("/mnt/other", "/srv/music")
		repo.Finish(a, models.SyncStatusCompleted, 1, 0, 0, 0, 10)
		repo.Finish(b, models.SyncStatusFailed, 0, 0, 1, 0, 0)
		repo.Finish(c, models.SyncStatusCompleted, 2, 0, 0, 0, 20)

		runs, err := repo.List(map[string]any{"device": "/mnt/ipod"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("got %d runs, want 2", len(runs))
		}
		if runs[0].Sequence() < runs[1].Sequence() {
			t.Error("runs not ordered newest first")
		}

		runs, err = repo.List(map[string]any{"status": models.SyncStatusFailed})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(runs) != 1 || runs[0].ID() != b.ID() {
			t.Errorf("status filter returned %d runs", len(runs))
		}

		runs, err = repo.List(map[string]any{"limit": 1})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(runs) != 1 || runs[0].ID() != c.ID() {
			t.Errorf("limit returned %d runs", len(runs))
		}
	})
}
