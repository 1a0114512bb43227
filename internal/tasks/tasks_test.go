package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipodkit/shuffleport/internal/builder"
	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/models"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func makeDevice(t *testing.T) string {
	t.Helper()
	mount := t.TempDir()
	for _, dir := range []string{device.MusicDir, device.ITunesDir, device.PlaylistDir} {
		if err := os.MkdirAll(filepath.Join(mount, filepath.FromSlash(dir)), 0755); err != nil {
			t.Fatalf("Failed to create device layout: %v", err)
		}
	}
	return mount
}

// memCacher is an in-memory FileStateCacher.
type memCacher struct {
	states map[string]*models.FileState
}

func newMemCacher() *memCacher {
	return &memCacher{states: make(map[string]*models.FileState)}
}

func (c *memCacher) Lookup(devicePath, relPath string) (*models.FileState, error) {
	return c.states[devicePath+"|"+relPath], nil
}

func (c *memCacher) Remember(devicePath, relPath string, size int64, modTime time.Time, checksum string) error {
	c.states[devicePath+"|"+relPath] = models.NewFileState(0, devicePath, relPath, size, modTime, checksum)
	return nil
}

func (c *memCacher) Forget(devicePath, relPath string) error {
	delete(c.states, devicePath+"|"+relPath)
	return nil
}

// memRecorder is an in-memory HistoryRecorder.
type memRecorder struct {
	runs []*models.SyncRun
}

func (r *memRecorder) Begin(devicePath, sourcePath string) (*models.SyncRun, error) {
	run := models.NewSyncRun(len(r.runs)+1, devicePath, sourcePath)
	r.runs = append(r.runs, run)
	return run, nil
}

func (r *memRecorder) Finish(run *models.SyncRun, status string, copied, skipped, failed, pruned int, bytesCopied int64) error {
	run.SetCounters(copied, skipped, failed, pruned, bytesCopied)
	run.Complete(status)
	return nil
}

func newTestEngine(states FileStateCacher, history HistoryRecorder) *Engine {
	return NewEngine(nil, builder.New("shuffle-db", nil), states, history, nil)
}

func actionFor(plan *Plan, destRel string) (FileAction, bool) {
	for _, a := range plan.Actions {
		if a.DestRel == destRel {
			return a, true
		}
	}
	return FileAction{}, false
}

func TestPlan(t *testing.T) {
	t.Run("new files are planned as copies", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		mustWrite(t, filepath.Join(music, "one.mp3"), "aaaa")
		mustWrite(t, filepath.Join(music, "Album", "two.mp3"), "bb")

		plan, err := newTestEngine(nil, nil).Plan(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}

		if plan.CopyCount != 2 || plan.SkipCount != 0 {
			t.Errorf("counts = copy %d skip %d", plan.CopyCount, plan.SkipCount)
		}
		if plan.CopyBytes != 6 {
			t.Errorf("CopyBytes = %d, want 6", plan.CopyBytes)
		}
		action, ok := actionFor(plan, device.MusicDir+"/Album/two.mp3")
		if !ok || action.Kind != ActionCopy {
			t.Errorf("nested file not planned as copy: %+v", action)
		}
	})

	t.Run("unchanged device files are skipped", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		src := filepath.Join(music, "one.mp3")
		mustWrite(t, src, "aaaa")

		dest := filepath.Join(mount, filepath.FromSlash(device.MusicDir), "one.mp3")
		mustWrite(t, dest, "aaaa")
		info, _ := os.Stat(src)
		os.Chtimes(dest, info.ModTime(), info.ModTime())

		plan, err := newTestEngine(nil, nil).Plan(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if plan.SkipCount != 1 || plan.CopyCount != 0 {
			t.Errorf("counts = copy %d skip %d", plan.CopyCount, plan.SkipCount)
		}
	})

	t.Run("newer source forces a refresh", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		src := filepath.Join(music, "one.mp3")
		mustWrite(t, src, "aaaa")

		dest := filepath.Join(mount, filepath.FromSlash(device.MusicDir), "one.mp3")
		mustWrite(t, dest, "aaaa")
		old := time.Now().Add(-time.Hour)
		os.Chtimes(dest, old, old)

		plan, err := newTestEngine(nil, nil).Plan(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if plan.RefreshCount != 1 {
			t.Errorf("RefreshCount = %d, want 1", plan.RefreshCount)
		}
	})

	t.Run("size change forces a refresh", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		mustWrite(t, filepath.Join(music, "one.mp3"), "aaaaaaaa")

		dest := filepath.Join(mount, filepath.FromSlash(device.MusicDir), "one.mp3")
		mustWrite(t, dest, "aaaa")
		future := time.Now().Add(time.Hour)
		os.Chtimes(dest, future, future)

		plan, err := newTestEngine(nil, nil).Plan(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if plan.RefreshCount != 1 {
			t.Errorf("RefreshCount = %d, want 1", plan.RefreshCount)
		}
	})

	t.Run("matching cache entry wins over device mtime", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		src := filepath.Join(music, "one.mp3")
		mustWrite(t, src, "aaaa")
		info, _ := os.Stat(src)

		// Device copy looks stale by mtime, but the cache says it matches.
		dest := filepath.Join(mount, filepath.FromSlash(device.MusicDir), "one.mp3")
		mustWrite(t, dest, "aaaa")
		old := time.Now().Add(-time.Hour)
		os.Chtimes(dest, old, old)

		cache := newMemCacher()
		cache.Remember(mount, device.MusicDir+"/one.mp3", info.Size(), info.ModTime(), "")

		plan, err := newTestEngine(cache, nil).Plan(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if plan.SkipCount != 1 {
			t.Errorf("SkipCount = %d, want 1", plan.SkipCount)
		}
	})

	t.Run("orphans are reported or pruned", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		mustWrite(t, filepath.Join(mount, filepath.FromSlash(device.MusicDir), "ghost.mp3"), "x")

		engine := newTestEngine(nil, nil)

		plan, err := engine.Plan(context.Background(), nil, PlanOpts{MusicDir: music, Device: mount})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if len(plan.Orphans) != 1 || plan.PruneCount != 0 {
			t.Errorf("orphans = %v, prune %d", plan.Orphans, plan.PruneCount)
		}

		plan, err = engine.Plan(context.Background(), nil, PlanOpts{MusicDir: music, Device: mount, Prune: true})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if plan.PruneCount != 1 || len(plan.Orphans) != 0 {
			t.Errorf("prune %d, orphans %v", plan.PruneCount, plan.Orphans)
		}
	})

	t.Run("unsafe names map to firmware-safe destinations", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		mustWrite(t, filepath.Join(music, "日本語.mp3"), "aaaa")

		plan, err := newTestEngine(nil, nil).Plan(context.Background(), nil, PlanOpts{
			MusicDir:      music,
			Device:        mount,
			RenameUnicode: true,
		})
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		action := plan.Actions[0]
		if action.DestRel == device.MusicDir+"/日本語.mp3" {
			t.Errorf("destination not made safe: %q", action.DestRel)
		}
	})

	t.Run("progress updates are emitted without blocking", func(t *testing.T) {
		music := t.TempDir()
		mount := makeDevice(t)
		mustWrite(t, filepath.Join(music, "one.mp3"), "a")

		// Unbuffered channel with no reader; sends must be dropped, not block.
		progress := make(chan ProgressUpdate)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := newTestEngine(nil, nil).Plan(context.Background(), progress, PlanOpts{MusicDir: music, Device: mount})
			if err != nil {
				t.Errorf("Plan failed: %v", err)
			}
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Plan blocked on progress channel")
		}
	})
}

func TestAudit(t *testing.T) {
	music := t.TempDir()
	mount := makeDevice(t)
	src := filepath.Join(music, "one.mp3")
	mustWrite(t, src, "aaaa")
	mustWrite(t, filepath.Join(music, "mix.m3u"), "one.mp3\nmissing.mp3\n")
	mustWrite(t, filepath.Join(mount, filepath.FromSlash(device.MusicDir), "ghost.mp3"), "x")

	t.Run("reports orphans and dangling playlist entries", func(t *testing.T) {
		result, err := newTestEngine(nil, nil).Audit(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Audit failed: %v", err)
		}
		if len(result.Orphans) != 1 {
			t.Errorf("Orphans = %v", result.Orphans)
		}
		if len(result.MissingEntries) != 1 || result.MissingEntries[0].Playlist != "mix" {
			t.Errorf("MissingEntries = %v", result.MissingEntries)
		}
		if result.HasDatabase {
			t.Error("HasDatabase should be false, no iTunesSD written")
		}
	})

	t.Run("detects a stale database", func(t *testing.T) {
		dbPath := filepath.Join(mount, filepath.FromSlash(device.DatabaseFile))
		mustWrite(t, dbPath, "db")
		old := time.Now().Add(-time.Hour)
		os.Chtimes(dbPath, old, old)

		result, err := newTestEngine(nil, nil).Audit(context.Background(), nil, PlanOpts{
			MusicDir: music,
			Device:   mount,
		})
		if err != nil {
			t.Fatalf("Audit failed: %v", err)
		}
		if !result.HasDatabase || !result.DatabaseStale {
			t.Errorf("HasDatabase = %v, DatabaseStale = %v", result.HasDatabase, result.DatabaseStale)
		}
	})
}

func TestActionKindString(t *testing.T) {
	cases := map[ActionKind]string{
		ActionCopy:    "copy",
		ActionRefresh: "refresh",
		ActionSkip:    "skip",
		ActionPrune:   "prune",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
