// Package tasks orchestrates transfers onto the device with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines three operations:
//
//  1. [SyncEngine.Plan] : Compute what a transfer would do
//     - Scans the source library and the device's music directory
//     - Classifies each track: copy (new), refresh (stale), skip (unchanged)
//     - Surfaces orphaned device files and verifies free space
//
//  2. [SyncEngine.Run] : Execute a plan
//     - Copies files with a bounded worker pool and optional byte-rate throttle
//     - Rewrites playlists to on-device paths
//     - Invokes the external database builder only after the copy phase completes
//     - Per-file failures are isolated and reported, never fatal mid-run
//
//  3. [SyncEngine.Audit] : Inspect a device without changing it
//     - Reports orphaned audio files, playlist entries with no backing track,
//       and whether the device database is missing or stale
//
// # Progress Reporting
//
// All operations emit [ProgressUpdate] values through a channel using select
// with default, so a slow consumer can never stall a transfer.
//
// # Persistence
//
// The optional [FileStateCacher] and [HistoryRecorder] interfaces connect the
// engine to the SQLite layer (repositories package). Cache errors are ignored
// so persistence problems cannot disrupt a transfer.
package tasks
