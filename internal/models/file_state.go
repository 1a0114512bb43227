package models

import (
	"fmt"
	"time"
)

// FileState caches the last-synced state of a single file on a device.
//
// Keyed by (device_path, rel_path). A plan compares the source file's size and
// mtime against this record to decide whether a copy is needed without
// re-hashing the device.
type FileState struct {
	id         string
	sequence   int
	devicePath string
	relPath    string
	size       int64
	modTime    time.Time
	checksum   string
	syncedAt   time.Time
	createdAt  time.Time
	updatedAt  time.Time
	deletedAt  *time.Time
}

var _ Model = (*FileState)(nil)

// NewFileState creates a FileState for a file just copied onto a device.
func NewFileState(sequence int, devicePath, relPath string, size int64, modTime time.Time, checksum string) *FileState {
	now := time.Now()
	return &FileState{
		sequence:   sequence,
		devicePath: devicePath,
		relPath:    relPath,
		size:       size,
		modTime:    modTime,
		checksum:   checksum,
		syncedAt:   now,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (f *FileState) ID() string            { return f.id }
func (f *FileState) Sequence() int         { return f.sequence }
func (f *FileState) DevicePath() string    { return f.devicePath }
func (f *FileState) RelPath() string       { return f.relPath }
func (f *FileState) Size() int64           { return f.size }
func (f *FileState) ModTime() time.Time    { return f.modTime }
func (f *FileState) Checksum() string      { return f.checksum }
func (f *FileState) SyncedAt() time.Time   { return f.syncedAt }
func (f *FileState) CreatedAt() time.Time  { return f.createdAt }
func (f *FileState) UpdatedAt() time.Time  { return f.updatedAt }
func (f *FileState) DeletedAt() *time.Time { return f.deletedAt }

func (f *FileState) SetID(id string)           { f.id = id }
func (f *FileState) SetSequence(n int)         { f.sequence = n }
func (f *FileState) SetUpdatedAt(t time.Time)  { f.updatedAt = t }
func (f *FileState) SetDeletedAt(t *time.Time) { f.deletedAt = t }
func (f *FileState) SetSyncedAt(t time.Time)   { f.syncedAt = t }

// Refresh updates the cached size, mtime and checksum after a copy.
func (f *FileState) Refresh(size int64, modTime time.Time, checksum string) {
	now := time.Now()
	f.size = size
	f.modTime = modTime
	f.checksum = checksum
	f.syncedAt = now
	f.updatedAt = now
}

// Matches reports whether the cached state still describes a source file with
// the given size and mtime. Mtimes within one second are treated as equal;
// FAT stores timestamps with two-second resolution.
func (f *FileState) Matches(size int64, modTime time.Time) bool {
	if f.size != size {
		return false
	}
	delta := modTime.Sub(f.modTime)
	if delta < 0 {
		delta = -delta
	}
	return delta <= time.Second
}

// Validate checks that required fields are present.
func (f *FileState) Validate() error {
	if f.devicePath == "" {
		return fmt.Errorf("file state requires a device path")
	}
	if f.relPath == "" {
		return fmt.Errorf("file state requires a relative path")
	}
	if f.size < 0 {
		return fmt.Errorf("file state size cannot be negative")
	}
	return nil
}
