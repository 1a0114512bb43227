package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ipodkit/shuffleport/internal/builder"
	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/library"
	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// ActionKind classifies what a plan decided for one file.
type ActionKind int

const (
	ActionCopy    ActionKind = iota // File absent on device
	ActionRefresh                   // Device copy is stale (size or mtime mismatch)
	ActionSkip                      // Device copy is current
	ActionPrune                     // Device file with no source counterpart
)

func (k ActionKind) String() string {
	switch k {
	case ActionCopy:
		return "copy"
	case ActionRefresh:
		return "refresh"
	case ActionSkip:
		return "skip"
	case ActionPrune:
		return "prune"
	default:
		return ""
	}
}

// FileAction is one planned operation against the device.
type FileAction struct {
	Kind    ActionKind
	Track   library.TrackFile // Zero value for prune actions
	DestRel string            // Slash-separated path under the mount point
	Reason  string            // Why the plan chose this action
}

// Plan is the computed set of actions for one transfer.
type Plan struct {
	Volume    *device.Volume
	Library   *library.Library
	Actions   []FileAction
	Playlists []library.Playlist // Playlists to rewrite onto the device
	Orphans   []string           // Device rel paths with no source counterpart (when prune is off)

	CopyCount    int
	RefreshCount int
	SkipCount    int
	PruneCount   int
	CopyBytes    int64
}

// Pending returns the copy and refresh actions, in plan order.
func (p *Plan) Pending() []FileAction {
	pending := make([]FileAction, 0, p.CopyCount+p.RefreshCount)
	for _, a := range p.Actions {
		if a.Kind == ActionCopy || a.Kind == ActionRefresh {
			pending = append(pending, a)
		}
	}
	return pending
}

// Prunes returns the prune actions, in plan order.
func (p *Plan) Prunes() []FileAction {
	var prunes []FileAction
	for _, a := range p.Actions {
		if a.Kind == ActionPrune {
			prunes = append(prunes, a)
		}
	}
	return prunes
}

// PlanOpts configures a Plan computation.
type PlanOpts struct {
	MusicDir      string
	PlaylistDir   string
	Device        string
	Prune         bool // Turn orphans into prune actions
	RenameUnicode bool // Map unsafe names through library.SafeRelPath
}

// RunOpts configures a Run execution.
type RunOpts struct {
	Workers     int             // Concurrent copy workers (default 4, capped at 8)
	ThrottleBps float64         // Copy throughput cap in bytes/sec, 0 disables
	SkipCopy    bool            // Rebuild only
	SkipRebuild bool            // Copy only
	Builder     builder.Options // Passed through to the external builder
}

// FileError records a per-file copy failure.
type FileError struct {
	Rel string
	Err error
}

// MissingEntry is a playlist entry with no backing track file.
type MissingEntry struct {
	Playlist string
	Entry    string
}

// RunResult contains all data from a full transfer operation.
type RunResult struct {
	Plan             *Plan
	Copied           int
	Skipped          int
	Failed           int
	Pruned           int
	BytesCopied      int64
	FailedFiles      []FileError
	PlaylistsWritten int
	MissingEntries   []MissingEntry
	Rebuild          *builder.Result
	RebuildSkipped   bool
	Status           string
	Duration         time.Duration
}

// AuditResult reports device consistency findings.
type AuditResult struct {
	Volume         *device.Volume
	DeviceTracks   int
	Orphans        []string
	MissingEntries []MissingEntry
	HasDatabase    bool
	DatabaseStale  bool // Database older than the newest music file
}

// FileStateCacher persists per-file sync state so later plans can skip
// unchanged files. Implemented by repositories.FileStateRepository.
type FileStateCacher interface {
	Lookup(devicePath, relPath string) (*models.FileState, error)
	Remember(devicePath, relPath string, size int64, modTime time.Time, checksum string) error
	Forget(devicePath, relPath string) error
}

// HistoryRecorder persists sync run records. Implemented by
// repositories.SyncRunRepository.
type HistoryRecorder interface {
	Begin(devicePath, sourcePath string) (*models.SyncRun, error)
	Finish(run *models.SyncRun, status string, copied, skipped, failed, pruned int, bytesCopied int64) error
}

// SyncEngine defines the orchestration operations over a device.
type SyncEngine interface {
	// Plan computes per-file actions without touching the device.
	Plan(ctx context.Context, progress chan<- ProgressUpdate, opts PlanOpts) (*Plan, error)

	// Run executes a plan: copy phase, playlist phase, optional prune, then
	// database rebuild. The rebuild never starts before copying finishes.
	Run(ctx context.Context, progress chan<- ProgressUpdate, plan *Plan, opts RunOpts) (*RunResult, error)

	// Audit reports orphans, dangling playlist entries, and database staleness.
	Audit(ctx context.Context, progress chan<- ProgressUpdate, opts PlanOpts) (*AuditResult, error)
}

// Engine implements SyncEngine.
type Engine struct {
	scanner *library.Scanner
	builder *builder.Builder
	states  FileStateCacher  // optional
	history HistoryRecorder  // optional
	logger  *log.Logger
}

// NewEngine creates an Engine. The states and history dependencies are
// optional; a nil cacher just means every plan rescans from scratch.
func NewEngine(scanner *library.Scanner, b *builder.Builder, states FileStateCacher, history HistoryRecorder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if scanner == nil {
		scanner = library.NewScanner(logger)
	}
	return &Engine{
		scanner: scanner,
		builder: b,
		states:  states,
		history: history,
		logger:  logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// deviceFile is one audio file found under iPod_Control/Music.
type deviceFile struct {
	rel     string
	size    int64
	modTime time.Time
}

// Plan computes the action set for a transfer.
func (e *Engine) Plan(ctx context.Context, progress chan<- ProgressUpdate, opts PlanOpts) (*Plan, error) {
	e.sendProgress(progress, scanSourceUpdate(opts.MusicDir))

	lib, err := e.scanner.Scan(ctx, opts.MusicDir, opts.PlaylistDir)
	if err != nil {
		return nil, err
	}

	vol, err := device.Validate(opts.Device)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, scanDeviceUpdate(vol.Mount))
	onDevice, err := e.scanDeviceMusic(ctx, vol)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Volume:    vol,
		Library:   lib,
		Playlists: lib.Playlists,
	}

	claimed := make(map[string]bool, len(lib.Tracks))
	for _, track := range lib.Tracks {
		rel := track.Rel
		if opts.RenameUnicode {
			rel = library.SafeRelPath(rel)
		}
		destRel := device.MusicDir + "/" + rel
		key := shared.NormalizePathKey(destRel)
		claimed[key] = true

		action := FileAction{Track: track, DestRel: destRel}
		existing, ok := onDevice[key]
		switch {
		case !ok:
			action.Kind = ActionCopy
			action.Reason = "not on device"
		case existing.size != track.Size:
			action.Kind = ActionRefresh
			action.Reason = fmt.Sprintf("size changed (%d -> %d)", existing.size, track.Size)
		case e.isStale(vol.Mount, destRel, track, existing):
			action.Kind = ActionRefresh
			action.Reason = "source is newer"
		default:
			action.Kind = ActionSkip
		}

		switch action.Kind {
		case ActionCopy, ActionRefresh:
			plan.CopyBytes += track.Size
		}
		plan.Actions = append(plan.Actions, action)
	}

	for key, df := range onDevice {
		if claimed[key] {
			continue
		}
		if opts.Prune {
			plan.Actions = append(plan.Actions, FileAction{
				Kind:    ActionPrune,
				DestRel: df.rel,
				Reason:  "no source counterpart",
			})
		} else {
			plan.Orphans = append(plan.Orphans, df.rel)
		}
	}

	for _, a := range plan.Actions {
		switch a.Kind {
		case ActionCopy:
			plan.CopyCount++
		case ActionRefresh:
			plan.RefreshCount++
		case ActionSkip:
			plan.SkipCount++
		case ActionPrune:
			plan.PruneCount++
		}
	}

	if vol.FreeBytes > 0 && plan.CopyBytes > int64(vol.FreeBytes) {
		return nil, fmt.Errorf("%w: need %s, have %s", shared.ErrNoFreeSpace,
			shared.HumanBytes(plan.CopyBytes), shared.HumanBytes(int64(vol.FreeBytes)))
	}

	e.sendProgress(progress, planReadyUpdate(plan))
	return plan, nil
}

// isStale decides whether an on-device file must be refreshed even though its
// size matches. The file-state cache wins when it matches the source exactly;
// otherwise the source mtime being more than a second newer than the device
// copy forces a refresh (FAT keeps coarse timestamps).
func (e *Engine) isStale(mount, destRel string, track library.TrackFile, existing deviceFile) bool {
	if e.states != nil {
		if state, err := e.states.Lookup(mount, destRel); err == nil && state != nil {
			return !state.Matches(track.Size, track.ModTime)
		}
	}
	return track.ModTime.Sub(existing.modTime) > time.Second
}

// scanDeviceMusic walks iPod_Control/Music building a map keyed by the
// normalized rel path of every audio file found.
func (e *Engine) scanDeviceMusic(ctx context.Context, vol *device.Volume) (map[string]deviceFile, error) {
	found := make(map[string]deviceFile)
	musicPath := vol.MusicPath()

	if _, err := os.Stat(musicPath); err != nil {
		// Fresh device, nothing copied yet.
		return found, nil
	}

	err := filepath.Walk(musicPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if !library.IsAudioFile(path) {
			return nil
		}
		rel, err := filepath.Rel(vol.Mount, path)
		if err != nil {
			return err
		}
		slashRel := filepath.ToSlash(rel)
		found[shared.NormalizePathKey(slashRel)] = deviceFile{
			rel:     slashRel,
			size:    info.Size(),
			modTime: info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan device music: %w", err)
	}
	return found, nil
}

// Audit inspects the device against the source without modifying anything.
func (e *Engine) Audit(ctx context.Context, progress chan<- ProgressUpdate, opts PlanOpts) (*AuditResult, error) {
	opts.Prune = false
	plan, err := e.Plan(ctx, progress, opts)
	if err != nil {
		return nil, err
	}

	result := &AuditResult{
		Volume:  plan.Volume,
		Orphans: plan.Orphans,
	}
	result.DeviceTracks = plan.SkipCount + plan.RefreshCount + len(plan.Orphans)

	_, result.MissingEntries = rewritePlaylists(plan)

	dbPath := plan.Volume.DatabasePath()
	if info, err := os.Stat(dbPath); err == nil {
		result.HasDatabase = true
		newest := newestDeviceTrack(plan.Volume)
		if !newest.IsZero() && newest.After(info.ModTime()) {
			result.DatabaseStale = true
		}
	}

	e.sendProgress(progress, auditUpdate(fmt.Sprintf(
		"Audit complete: %d orphans, %d dangling playlist entries", len(result.Orphans), len(result.MissingEntries))))
	return result, nil
}

// newestDeviceTrack returns the newest mtime under iPod_Control/Music.
func newestDeviceTrack(vol *device.Volume) time.Time {
	var newest time.Time
	filepath.Walk(vol.MusicPath(), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !library.IsAudioFile(path) {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest
}
