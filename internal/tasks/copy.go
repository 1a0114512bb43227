package tasks

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/shared"
	"golang.org/x/time/rate"
)

// copyChunk is the unit the throttle meters; also the burst size of the limiter.
const copyChunk = 256 * 1024

type copyOutcome struct {
	action   FileAction
	written  int64
	checksum string
	err      error
}

// Run executes a plan. Sequencing is strict: copy, playlists, prune, then
// the database rebuild. Per-file failures are collected, not fatal.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate, plan *Plan, opts RunOpts) (*RunResult, error) {
	if plan == nil || plan.Volume == nil {
		return nil, fmt.Errorf("%w: no plan", shared.ErrInvalidInput)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > 8 {
		opts.Workers = 8
	}

	var run *models.SyncRun
	if e.history != nil {
		if r, err := e.history.Begin(plan.Volume.Mount, plan.Library.Root); err == nil {
			run = r
		} else {
			e.logger.Warn("failed to record sync run", "error", err)
		}
	}

	start := time.Now()
	result := &RunResult{Plan: plan, Skipped: plan.SkipCount}

	if !opts.SkipCopy {
		if err := device.EnsureLayout(plan.Volume); err != nil {
			e.finishHistory(run, models.SyncStatusFailed, result)
			return nil, err
		}

		e.copyPhase(ctx, progress, plan, opts, result)

		if ctx.Err() != nil {
			e.finishHistory(run, models.SyncStatusFailed, result)
			return result, ctx.Err()
		}

		e.playlistPhase(progress, plan, result)
		e.prunePhase(progress, plan, result)
	}

	// A run where every attempted copy failed is not worth indexing.
	attempted := plan.CopyCount + plan.RefreshCount
	if !opts.SkipCopy && attempted > 0 && result.Copied == 0 {
		result.Status = models.SyncStatusFailed
		result.RebuildSkipped = true
		result.Duration = time.Since(start)
		e.finishHistory(run, result.Status, result)
		return result, fmt.Errorf("%w: all %d copies failed", shared.ErrSyncFailed, attempted)
	}

	if opts.SkipRebuild {
		result.RebuildSkipped = true
	} else {
		e.sendProgress(progress, rebuildStartUpdate())
		rebuild, err := e.builder.Rebuild(ctx, plan.Volume.Mount, opts.Builder, func(line string) {
			e.sendProgress(progress, rebuildLineUpdate(line))
		})
		result.Rebuild = rebuild
		if err != nil {
			result.Status = models.SyncStatusFailed
			result.Duration = time.Since(start)
			e.finishHistory(run, result.Status, result)
			return result, err
		}
		e.sendProgress(progress, rebuildDoneUpdate())
	}

	if result.Failed > 0 {
		result.Status = models.SyncStatusPartial
	} else {
		result.Status = models.SyncStatusCompleted
	}
	result.Duration = time.Since(start)
	e.finishHistory(run, result.Status, result)
	return result, nil
}

func (e *Engine) finishHistory(run *models.SyncRun, status string, result *RunResult) {
	if e.history == nil || run == nil {
		return
	}
	err := e.history.Finish(run, status, result.Copied, result.Skipped, result.Failed, result.Pruned, result.BytesCopied)
	if err != nil {
		e.logger.Warn("failed to finalize sync run", "error", err)
	}
}

// copyPhase copies pending files with a bounded worker pool. When a throttle
// is configured, a shared limiter meters bytes across all workers.
func (e *Engine) copyPhase(ctx context.Context, progress chan<- ProgressUpdate, plan *Plan, opts RunOpts, result *RunResult) {
	pending := plan.Pending()
	if len(pending) == 0 {
		return
	}

	var limiter *rate.Limiter
	if opts.ThrottleBps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ThrottleBps), copyChunk)
	}

	jobs := make(chan FileAction, len(pending))
	outcomes := make(chan copyOutcome, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range jobs {
				if ctx.Err() != nil {
					outcomes <- copyOutcome{action: action, err: ctx.Err()}
					continue
				}
				written, sum, err := e.copyOne(ctx, plan.Volume, action, limiter)
				outcomes <- copyOutcome{action: action, written: written, checksum: sum, err: err}
			}
		}()
	}

	for _, action := range pending {
		jobs <- action
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	completed := 0
	for outcome := range outcomes {
		completed++
		if outcome.err != nil {
			result.Failed++
			result.FailedFiles = append(result.FailedFiles, FileError{Rel: outcome.action.DestRel, Err: outcome.err})
			e.sendProgress(progress, copyFailedUpdate(completed, len(pending), outcome.action.DestRel, outcome.err))
			e.logger.Error("copy failed", "file", outcome.action.DestRel, "error", outcome.err)
			continue
		}

		result.Copied++
		result.BytesCopied += outcome.written
		e.sendProgress(progress, copyFileUpdate(completed, len(pending), outcome.action.DestRel))

		if e.states != nil {
			// Cache errors never disrupt a transfer.
			err := e.states.Remember(plan.Volume.Mount, outcome.action.DestRel,
				outcome.action.Track.Size, outcome.action.Track.ModTime, outcome.checksum)
			if err != nil {
				e.logger.Debug("file state cache write failed", "file", outcome.action.DestRel, "error", err)
			}
		}
	}

	sort.Slice(result.FailedFiles, func(i, j int) bool {
		return result.FailedFiles[i].Rel < result.FailedFiles[j].Rel
	})
}

// copyOne copies a single track to its destination. The file lands under a
// .part name first and is renamed into place, so an interrupted run never
// leaves a truncated track where the builder would index it.
func (e *Engine) copyOne(ctx context.Context, vol *device.Volume, action FileAction, limiter *rate.Limiter) (int64, string, error) {
	dest, err := device.SafeJoin(vol.Mount, action.DestRel)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	src, err := os.Open(action.Track.Path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	part := dest + ".part"
	dst, err := os.Create(part)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create destination: %w", err)
	}

	hash := sha1.New()
	written, err := throttledCopy(ctx, io.MultiWriter(dst, hash), src, limiter)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return written, "", err
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return written, "", fmt.Errorf("failed to finalize copy: %w", err)
	}

	// Carry the source mtime so later plans can compare timestamps.
	os.Chtimes(dest, action.Track.ModTime, action.Track.ModTime)

	return written, hex.EncodeToString(hash.Sum(nil)), nil
}

// throttledCopy copies r to w in chunks, waiting on the limiter per chunk.
func throttledCopy(ctx context.Context, w io.Writer, r io.Reader, limiter *rate.Limiter) (int64, error) {
	buf := make([]byte, copyChunk)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// playlistPhase rewrites every playlist to on-device paths and writes them
// as .m3u files under the playlist directory.
func (e *Engine) playlistPhase(progress chan<- ProgressUpdate, plan *Plan, result *RunResult) {
	rewritten, missing := rewritePlaylists(plan)
	result.MissingEntries = missing

	for i, pl := range rewritten {
		e.sendProgress(progress, writePlaylistUpdate(i+1, len(rewritten), pl.name))

		dest, err := device.SafeJoin(plan.Volume.Mount, device.PlaylistDir+"/"+pl.name+".m3u")
		if err != nil {
			e.logger.Error("skipping playlist", "name", pl.name, "error", err)
			continue
		}
		content := "#EXTM3U\n" + strings.Join(pl.entries, "\n") + "\n"
		if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
			e.logger.Error("failed to write playlist", "name", pl.name, "error", err)
			continue
		}
		result.PlaylistsWritten++
	}
}

type rewrittenPlaylist struct {
	name    string
	entries []string
}

// rewritePlaylists maps each playlist entry from its local path to the
// corresponding on-device path. Entries whose track is not in the library
// are reported as missing; empty playlists are dropped entirely, matching
// the builder's behavior of skipping them.
func rewritePlaylists(plan *Plan) ([]rewrittenPlaylist, []MissingEntry) {
	destByLocal := make(map[string]string, len(plan.Actions))
	for _, a := range plan.Actions {
		if a.Kind == ActionPrune {
			continue
		}
		destByLocal[filepath.Clean(a.Track.Path)] = "/" + a.DestRel
	}

	var out []rewrittenPlaylist
	var missing []MissingEntry

	for _, pl := range plan.Playlists {
		rw := rewrittenPlaylist{name: pl.Name}
		for _, entry := range pl.Tracks {
			if dest, ok := destByLocal[filepath.Clean(entry)]; ok {
				rw.entries = append(rw.entries, dest)
			} else {
				missing = append(missing, MissingEntry{Playlist: pl.Name, Entry: entry})
			}
		}
		if len(rw.entries) > 0 {
			out = append(out, rw)
		}
	}
	return out, missing
}

// prunePhase removes device files the plan marked for pruning.
func (e *Engine) prunePhase(progress chan<- ProgressUpdate, plan *Plan, result *RunResult) {
	prunes := plan.Prunes()
	for i, action := range prunes {
		e.sendProgress(progress, pruneUpdate(i+1, len(prunes), action.DestRel))

		dest, err := device.SafeJoin(plan.Volume.Mount, action.DestRel)
		if err != nil {
			e.logger.Error("skipping prune", "file", action.DestRel, "error", err)
			continue
		}
		if err := os.Remove(dest); err != nil {
			e.logger.Error("failed to prune", "file", action.DestRel, "error", err)
			continue
		}
		result.Pruned++

		if e.states != nil {
			if err := e.states.Forget(plan.Volume.Mount, action.DestRel); err != nil {
				e.logger.Debug("file state cache delete failed", "file", action.DestRel, "error", err)
			}
		}
	}
}
