package models

import (
	"fmt"
	"time"
)

// SyncRun statuses recorded in the history database.
const (
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusPartial   = "partial" // copy finished with per-file failures
	SyncStatusFailed    = "failed"
)

// SyncRun records one orchestrated transfer onto a device.
type SyncRun struct {
	id          string
	sequence    int
	devicePath  string
	sourcePath  string
	status      string
	copied      int
	skipped     int
	failed      int
	pruned      int
	bytesCopied int64
	startedAt   time.Time
	finishedAt  *time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

var _ Model = (*SyncRun)(nil)

// NewSyncRun creates a SyncRun in the running state for the given device and source paths.
func NewSyncRun(sequence int, devicePath, sourcePath string) *SyncRun {
	now := time.Now()
	return &SyncRun{
		sequence:   sequence,
		devicePath: devicePath,
		sourcePath: sourcePath,
		status:     SyncStatusRunning,
		startedAt:  now,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (s *SyncRun) ID() string            { return s.id }
func (s *SyncRun) Sequence() int         { return s.sequence }
func (s *SyncRun) DevicePath() string    { return s.devicePath }
func (s *SyncRun) SourcePath() string    { return s.sourcePath }
func (s *SyncRun) Status() string        { return s.status }
func (s *SyncRun) Copied() int           { return s.copied }
func (s *SyncRun) Skipped() int          { return s.skipped }
func (s *SyncRun) Failed() int           { return s.failed }
func (s *SyncRun) Pruned() int           { return s.pruned }
func (s *SyncRun) BytesCopied() int64    { return s.bytesCopied }
func (s *SyncRun) StartedAt() time.Time  { return s.startedAt }
func (s *SyncRun) FinishedAt() *time.Time { return s.finishedAt }
func (s *SyncRun) CreatedAt() time.Time  { return s.createdAt }
func (s *SyncRun) UpdatedAt() time.Time  { return s.updatedAt }
func (s *SyncRun) DeletedAt() *time.Time { return s.deletedAt }

func (s *SyncRun) SetID(id string)             { s.id = id }
func (s *SyncRun) SetSequence(n int)           { s.sequence = n }
func (s *SyncRun) SetUpdatedAt(t time.Time)    { s.updatedAt = t }
func (s *SyncRun) SetDeletedAt(t *time.Time)   { s.deletedAt = t }
func (s *SyncRun) SetStartedAt(t time.Time)    { s.startedAt = t }
func (s *SyncRun) SetFinishedAt(t *time.Time)  { s.finishedAt = t }
func (s *SyncRun) SetStatus(status string)     { s.status = status }

// SetCounters records the final counters for the run.
func (s *SyncRun) SetCounters(copied, skipped, failed, pruned int, bytesCopied int64) {
	s.copied = copied
	s.skipped = skipped
	s.failed = failed
	s.pruned = pruned
	s.bytesCopied = bytesCopied
}

// Complete transitions the run to a terminal status and stamps the finish time.
func (s *SyncRun) Complete(status string) {
	now := time.Now()
	s.status = status
	s.finishedAt = &now
	s.updatedAt = now
}

// Duration returns how long the run took, or how long it has been running.
func (s *SyncRun) Duration() time.Duration {
	if s.finishedAt != nil {
		return s.finishedAt.Sub(s.startedAt)
	}
	return time.Since(s.startedAt)
}

// Validate checks that required fields are present and the status is known.
func (s *SyncRun) Validate() error {
	if s.devicePath == "" {
		return fmt.Errorf("sync run requires a device path")
	}
	if s.sourcePath == "" {
		return fmt.Errorf("sync run requires a source path")
	}
	switch s.status {
	case SyncStatusRunning, SyncStatusCompleted, SyncStatusPartial, SyncStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown sync status %q", s.status)
	}
}
