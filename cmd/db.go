package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/repositories"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/urfave/cli/v3"
)

// DBRebuild reruns the external database builder without copying anything.
func (r *Runner) DBRebuild(ctx context.Context, cmd *cli.Command) error {
	mount, err := r.deviceMount(cmd)
	if err != nil {
		return err
	}

	vol, err := device.Validate(mount)
	if err != nil {
		return err
	}

	opts := r.builderOptions(cmd)

	r.writePlain("Rebuilding database on %s...\n", vol.Mount)
	result, err := r.builder.Rebuild(ctx, vol.Mount, opts, func(line string) {
		r.writePlain("  %s\n", line)
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Database rebuilt in %s\n", result.Duration)
	return nil
}

// HistoryList prints recorded sync runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return fmt.Errorf("%w: history database not initialized, run 'setup' first", shared.ErrMissingConfig)
	}

	repo := repositories.NewSyncRunRepository(r.db)
	criteria := map[string]any{
		"device": cmd.String("device"),
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		summaries := make([]map[string]any, 0, len(runs))
		for _, run := range runs {
			summaries = append(summaries, map[string]any{
				"id":           run.ID(),
				"device":       run.DevicePath(),
				"source":       run.SourcePath(),
				"status":       run.Status(),
				"copied":       run.Copied(),
				"skipped":      run.Skipped(),
				"failed":       run.Failed(),
				"pruned":       run.Pruned(),
				"bytes_copied": run.BytesCopied(),
				"started_at":   run.StartedAt(),
				"finished_at":  run.FinishedAt(),
			})
		}
		return r.writeJSON(summaries, true)
	}

	if len(runs) == 0 {
		r.writePlain("No sync runs recorded.\n")
		return nil
	}

	r.writePlainHeader("Sync History")
	for _, run := range runs {
		r.writePlain("%s  %s  %s\n", run.StartedAt().Format("2006-01-02 15:04:05"), run.Status(), run.DevicePath())
		r.writePlain("    copied %d, skipped %d, failed %d, pruned %d (%s in %s)\n",
			run.Copied(), run.Skipped(), run.Failed(), run.Pruned(),
			shared.HumanBytes(run.BytesCopied()), run.Duration().Round(time.Second))
	}
	return nil
}
