package main

import (
	"context"
	"fmt"

	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
	"github.com/urfave/cli/v3"
)

// planOptions assembles PlanOpts from flags and config for plan-based commands.
func (r *Runner) planOptions(cmd *cli.Command) (tasks.PlanOpts, error) {
	mount, err := r.deviceMount(cmd)
	if err != nil {
		return tasks.PlanOpts{}, err
	}
	music := r.musicDir(cmd)
	if music == "" {
		return tasks.PlanOpts{}, fmt.Errorf("%w: no music directory given (use --music or set library.music_dir)", shared.ErrMissingArgument)
	}

	prune := r.config.Sync.Prune
	if cmd.Bool("prune") {
		prune = true
	}

	rename := r.config.Builder.RenameUnicode
	if cmd.Bool("rename-unicode") {
		rename = true
	}

	return tasks.PlanOpts{
		MusicDir:      music,
		PlaylistDir:   r.playlistDir(cmd),
		Device:        mount,
		Prune:         prune,
		RenameUnicode: rename,
	}, nil
}

// SyncPlan computes and prints what a sync would do, writing nothing.
func (r *Runner) SyncPlan(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.planOptions(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("computing plan", "music", opts.MusicDir, "device", opts.Device)

	plan, err := r.engine.Plan(ctx, nil, opts)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(planSummary(plan), true)
	}

	r.writePlainHeader(fmt.Sprintf("Plan for %s", plan.Volume.Mount))
	r.writePlain("Copy: %d new, %d changed (%s)\n", plan.CopyCount, plan.RefreshCount, shared.HumanBytes(plan.CopyBytes))
	r.writePlain("Unchanged: %d\n", plan.SkipCount)
	if plan.PruneCount > 0 {
		r.writePlain("Remove: %d\n", plan.PruneCount)
	}
	if len(plan.Orphans) > 0 {
		r.writePlain("Orphans (kept): %d\n", len(plan.Orphans))
	}
	r.writePlain("Playlists: %d\n", len(plan.Playlists))

	pending := plan.Pending()
	if len(pending) > 0 {
		r.writePlainln("Files to copy:")
		for _, action := range pending {
			r.writePlain("  %s %s (%s)\n", actionMark(action.Kind), action.DestRel, action.Reason)
		}
	}

	for _, action := range plan.Prunes() {
		r.writePlain("  - %s\n", action.DestRel)
	}

	return nil
}

func actionMark(kind tasks.ActionKind) string {
	switch kind {
	case tasks.ActionCopy:
		return "+"
	case tasks.ActionRefresh:
		return "~"
	case tasks.ActionPrune:
		return "-"
	default:
		return " "
	}
}

// planSummary flattens a plan for JSON output.
func planSummary(plan *tasks.Plan) map[string]any {
	actions := make([]map[string]any, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		if a.Kind == tasks.ActionSkip {
			continue
		}
		actions = append(actions, map[string]any{
			"kind":   a.Kind.String(),
			"dest":   a.DestRel,
			"reason": a.Reason,
		})
	}
	return map[string]any{
		"device":     plan.Volume.Mount,
		"copy":       plan.CopyCount,
		"refresh":    plan.RefreshCount,
		"skip":       plan.SkipCount,
		"prune":      plan.PruneCount,
		"copy_bytes": plan.CopyBytes,
		"orphans":    plan.Orphans,
		"playlists":  len(plan.Playlists),
		"actions":    actions,
	}
}

// SyncRun executes a full transfer: plan, copy, playlists, prune, rebuild.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.planOptions(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("starting sync", "music", opts.MusicDir, "device", opts.Device)
	r.writePlain("Planning sync to %s...\n", opts.Device)

	plan, err := r.engine.Plan(ctx, nil, opts)
	if err != nil {
		return err
	}

	if plan.CopyCount+plan.RefreshCount+plan.PruneCount == 0 {
		r.writePlain("Device is up to date: %d files unchanged.\n", plan.SkipCount)
		if !cmd.Bool("skip-rebuild") {
			r.writePlain("Nothing to rebuild.\n")
		}
		return nil
	}

	runOpts := r.runOptions(cmd)
	runOpts.SkipRebuild = cmd.Bool("skip-rebuild")

	// Progress goroutine mirrors engine phases onto the terminal.
	progressCh := make(chan tasks.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			switch update.Phase {
			case tasks.CopyFiles:
				r.writePlain("  %s\n", update.Message)
			case tasks.WritePlaylists, tasks.PruneFiles:
				r.writePlain("  %s\n", update.Message)
			case tasks.RebuildDB:
				if update.Step == 0 && update.Message != "" {
					r.writePlain("⚙ %s\n", update.Message)
				}
			}
		}
	}()

	result, err := r.engine.Run(ctx, progressCh, plan, runOpts)
	close(progressCh)

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")
	r.writePlain("Status: %s\n", result.Status)
	r.writePlain("Copied: %d files (%s)\n", result.Copied, shared.HumanBytes(result.BytesCopied))
	r.writePlain("Skipped: %d unchanged\n", result.Skipped)
	if result.Pruned > 0 {
		r.writePlain("Removed: %d\n", result.Pruned)
	}
	r.writePlain("Playlists written: %d\n", result.PlaylistsWritten)
	if result.RebuildSkipped {
		r.writePlain("Database rebuild: skipped\n")
	} else if result.Rebuild != nil {
		r.writePlain("Database rebuilt in %s\n", result.Rebuild.Duration)
	}
	r.writePlain("Duration: %s\n", result.Duration)

	if len(result.MissingEntries) > 0 {
		r.writePlain("\nPlaylist entries with no matching track:\n")
		for _, me := range result.MissingEntries {
			r.writePlain("  - %s: %s\n", me.Playlist, me.Entry)
		}
	}

	if result.Failed > 0 {
		r.writePlain("\nFailed to copy %d files:\n", result.Failed)
		for _, fe := range result.FailedFiles {
			r.writePlain("  - %s: %v\n", fe.Rel, fe.Err)
		}
		if result.Status == models.SyncStatusPartial {
			return fmt.Errorf("%w: %d files failed", shared.ErrSyncFailed, result.Failed)
		}
	}

	return nil
}

// Audit inspects a device against the source library without modifying it.
func (r *Runner) Audit(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.planOptions(cmd)
	if err != nil {
		return err
	}

	result, err := r.engine.Audit(ctx, nil, opts)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"device":          result.Volume.Mount,
			"device_tracks":   result.DeviceTracks,
			"orphans":         result.Orphans,
			"missing_entries": result.MissingEntries,
			"has_database":    result.HasDatabase,
			"database_stale":  result.DatabaseStale,
		}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Audit of %s", result.Volume.Mount))
	r.writePlain("Tracks on device: %d\n", result.DeviceTracks)
	r.writePlain("Database present: %t\n", result.HasDatabase)
	if result.DatabaseStale {
		r.writePlain("⚠ Database is older than the newest track; run 'db rebuild'\n")
	}

	if len(result.Orphans) > 0 {
		r.writePlain("\nOrphaned files (no source counterpart):\n")
		for _, rel := range result.Orphans {
			r.writePlain("  - %s\n", rel)
		}
	}

	if len(result.MissingEntries) > 0 {
		r.writePlain("\nPlaylist entries with no matching track:\n")
		for _, me := range result.MissingEntries {
			r.writePlain("  - %s: %s\n", me.Playlist, me.Entry)
		}
	}

	if len(result.Orphans) == 0 && len(result.MissingEntries) == 0 && result.HasDatabase && !result.DatabaseStale {
		r.writePlain("\n✓ Device is consistent\n")
	}

	return nil
}
