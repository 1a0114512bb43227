package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
	helpers "github.com/ipodkit/shuffleport/internal/testing"
	"github.com/urfave/cli/v3"
)

func testRunner(engine tasks.SyncEngine, out io.Writer) *Runner {
	return NewRunner(RunnerOpts{
		Engine: engine,
		Output: out,
		Logger: shared.NewLogger(io.Discard),
	})
}

func runCLI(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	root := &cli.Command{
		Name:     "shuffleport",
		Commands: r.register(),
	}
	return root.Run(context.Background(), append([]string{"shuffleport"}, args...))
}

func samplePlan() *tasks.Plan {
	return &tasks.Plan{
		Volume:    &device.Volume{Mount: "/mnt/ipod"},
		CopyCount: 1,
		SkipCount: 2,
		CopyBytes: 4096,
		Actions: []tasks.FileAction{
			{Kind: tasks.ActionCopy, DestRel: "iPod_Control/Music/a.mp3", Reason: "not on device"},
			{Kind: tasks.ActionSkip, DestRel: "iPod_Control/Music/b.mp3"},
			{Kind: tasks.ActionSkip, DestRel: "iPod_Control/Music/c.mp3"},
		},
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(RunnerOpts{})

	if r.config == nil || r.builder == nil || r.engine == nil {
		t.Error("defaults not filled in")
	}
	if r.config.Builder.Binary != "shuffle-db" {
		t.Errorf("default binary = %q", r.config.Builder.Binary)
	}
}

func TestWriteHelpers(t *testing.T) {
	t.Run("writeJSON compact and pretty", func(t *testing.T) {
		var buf bytes.Buffer
		r := testRunner(nil, &buf)

		if err := r.writeJSON(map[string]int{"n": 1}, false); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if buf.String() != "{\"n\":1}\n" {
			t.Errorf("compact = %q", buf.String())
		}

		buf.Reset()
		if err := r.writeJSON(map[string]int{"n": 1}, true); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if !strings.Contains(buf.String(), "  \"n\": 1") {
			t.Errorf("pretty = %q", buf.String())
		}
	})

	t.Run("writeJSON propagates write errors", func(t *testing.T) {
		r := testRunner(nil, &helpers.FWriter{})
		if err := r.writeJSON(map[string]int{"n": 1}, false); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("writePlainHeader frames the title", func(t *testing.T) {
		var buf bytes.Buffer
		r := testRunner(nil, &buf)
		r.writePlainHeader("Sync Complete")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 || lines[1] != "Sync Complete" {
			t.Errorf("header = %q", buf.String())
		}
	})
}

func TestSyncPlanCommand(t *testing.T) {
	t.Run("prints the plan", func(t *testing.T) {
		var buf bytes.Buffer
		engine := &helpers.MockEngine{PlanResult: samplePlan()}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "sync", "plan", "-d", "/mnt/ipod", "-m", "/srv/music"); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "Plan for /mnt/ipod") {
			t.Errorf("missing header:\n%s", out)
		}
		if !strings.Contains(out, "Copy: 1 new, 0 changed (4.0 KiB)") {
			t.Errorf("missing counts:\n%s", out)
		}
		if !strings.Contains(out, "+ iPod_Control/Music/a.mp3 (not on device)") {
			t.Errorf("missing pending file:\n%s", out)
		}

		if len(engine.PlanCalls) != 1 {
			t.Fatalf("Plan called %d times", len(engine.PlanCalls))
		}
		opts := engine.PlanCalls[0]
		if opts.Device != "/mnt/ipod" || opts.MusicDir != "/srv/music" || opts.Prune {
			t.Errorf("opts = %+v", opts)
		}
	})

	t.Run("prune flag reaches the engine", func(t *testing.T) {
		engine := &helpers.MockEngine{PlanResult: samplePlan()}
		r := testRunner(engine, io.Discard)

		if err := runCLI(t, r, "sync", "plan", "-d", "/mnt/ipod", "-m", "/srv/music", "--prune"); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		if !engine.PlanCalls[0].Prune {
			t.Error("prune flag not passed through")
		}
	})

	t.Run("json output is machine-readable", func(t *testing.T) {
		var buf bytes.Buffer
		engine := &helpers.MockEngine{PlanResult: samplePlan()}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "sync", "plan", "-d", "/mnt/ipod", "-m", "/srv/music", "--json"); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if decoded["copy"].(float64) != 1 {
			t.Errorf("copy = %v", decoded["copy"])
		}
		// Skips are noise in JSON output; only actionable entries appear.
		if actions := decoded["actions"].([]any); len(actions) != 1 {
			t.Errorf("actions = %v", actions)
		}
	})

	t.Run("requires a device mount", func(t *testing.T) {
		engine := &helpers.MockEngine{PlanResult: samplePlan()}
		r := testRunner(engine, io.Discard)

		err := runCLI(t, r, "sync", "plan", "-m", "/srv/music")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("err = %v, want ErrMissingArgument", err)
		}
		if len(engine.PlanCalls) != 0 {
			t.Error("engine should not be reached")
		}
	})
}

func TestSyncRunCommand(t *testing.T) {
	t.Run("up-to-date device short-circuits", func(t *testing.T) {
		var buf bytes.Buffer
		plan := samplePlan()
		plan.CopyCount = 0
		plan.Actions = plan.Actions[1:]
		engine := &helpers.MockEngine{PlanResult: plan}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "sync", "run", "-d", "/mnt/ipod", "-m", "/srv/music"); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		if !strings.Contains(buf.String(), "Device is up to date: 2 files unchanged.") {
			t.Errorf("output:\n%s", buf.String())
		}
		if len(engine.RunCalls) != 0 {
			t.Error("Run should not be called for an up-to-date device")
		}
	})

	t.Run("prints the result summary", func(t *testing.T) {
		var buf bytes.Buffer
		engine := &helpers.MockEngine{
			PlanResult: samplePlan(),
			RunResult: &tasks.RunResult{
				Copied:           1,
				Skipped:          2,
				BytesCopied:      4096,
				PlaylistsWritten: 1,
				RebuildSkipped:   true,
				Status:           models.SyncStatusCompleted,
			},
		}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "sync", "run", "-d", "/mnt/ipod", "-m", "/srv/music", "--skip-rebuild"); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "Status: completed") || !strings.Contains(out, "Copied: 1 files (4.0 KiB)") {
			t.Errorf("output:\n%s", out)
		}
		if !strings.Contains(out, "Database rebuild: skipped") {
			t.Errorf("output:\n%s", out)
		}
		if len(engine.RunCalls) != 1 || !engine.RunCalls[0].SkipRebuild {
			t.Errorf("RunCalls = %+v", engine.RunCalls)
		}
	})

	t.Run("partial runs exit nonzero", func(t *testing.T) {
		engine := &helpers.MockEngine{
			PlanResult: samplePlan(),
			RunResult: &tasks.RunResult{
				Copied: 0,
				Failed: 1,
				FailedFiles: []tasks.FileError{
					{Rel: "iPod_Control/Music/a.mp3", Err: errors.New("io error")},
				},
				Status: models.SyncStatusPartial,
			},
		}
		r := testRunner(engine, io.Discard)

		err := runCLI(t, r, "sync", "run", "-d", "/mnt/ipod", "-m", "/srv/music")
		if !errors.Is(err, shared.ErrSyncFailed) {
			t.Errorf("err = %v, want ErrSyncFailed", err)
		}
	})

	t.Run("worker and throttle flags map to run options", func(t *testing.T) {
		engine := &helpers.MockEngine{
			PlanResult: samplePlan(),
			RunResult:  &tasks.RunResult{Status: models.SyncStatusCompleted},
		}
		r := testRunner(engine, io.Discard)

		err := runCLI(t, r, "sync", "run", "-d", "/mnt/ipod", "-m", "/srv/music", "--workers", "2", "--throttle", "1.5")
		if err != nil {
			t.Fatalf("command failed: %v", err)
		}
		opts := engine.RunCalls[0]
		if opts.Workers != 2 {
			t.Errorf("Workers = %d", opts.Workers)
		}
		if opts.ThrottleBps != 1.5*1024*1024 {
			t.Errorf("ThrottleBps = %v", opts.ThrottleBps)
		}
	})
}

func TestAuditCommand(t *testing.T) {
	t.Run("consistent device", func(t *testing.T) {
		var buf bytes.Buffer
		engine := &helpers.MockEngine{
			AuditResult: &tasks.AuditResult{
				Volume:       &device.Volume{Mount: "/mnt/ipod"},
				DeviceTracks: 3,
				HasDatabase:  true,
			},
		}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "audit", "-d", "/mnt/ipod", "-m", "/srv/music"); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		if !strings.Contains(buf.String(), "✓ Device is consistent") {
			t.Errorf("output:\n%s", buf.String())
		}
	})

	t.Run("findings are listed", func(t *testing.T) {
		var buf bytes.Buffer
		engine := &helpers.MockEngine{
			AuditResult: &tasks.AuditResult{
				Volume:  &device.Volume{Mount: "/mnt/ipod"},
				Orphans: []string{"iPod_Control/Music/ghost.mp3"},
				MissingEntries: []tasks.MissingEntry{
					{Playlist: "mix", Entry: "/srv/music/gone.mp3"},
				},
				HasDatabase:   true,
				DatabaseStale: true,
			},
		}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "audit", "-d", "/mnt/ipod", "-m", "/srv/music"); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "ghost.mp3") || !strings.Contains(out, "mix: /srv/music/gone.mp3") {
			t.Errorf("output:\n%s", out)
		}
		if !strings.Contains(out, "run 'db rebuild'") {
			t.Errorf("stale warning missing:\n%s", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		engine := &helpers.MockEngine{
			AuditResult: &tasks.AuditResult{
				Volume:       &device.Volume{Mount: "/mnt/ipod"},
				DeviceTracks: 3,
			},
		}
		r := testRunner(engine, &buf)

		if err := runCLI(t, r, "audit", "-d", "/mnt/ipod", "-m", "/srv/music", "--json"); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["device_tracks"].(float64) != 3 {
			t.Errorf("decoded = %v", decoded)
		}
	})
}
