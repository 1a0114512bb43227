package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Device errors
	ErrDeviceNotFound    = fmt.Errorf("device not found")
	ErrInvalidDevice     = fmt.Errorf("invalid device volume")
	ErrDeviceNotWritable = fmt.Errorf("device volume not writable")
	ErrNoFreeSpace       = fmt.Errorf("insufficient free space on device")
	ErrUnsafePath        = fmt.Errorf("path escapes device mount point")

	// Library errors
	ErrLibraryNotFound  = fmt.Errorf("music library not found")
	ErrInvalidPlaylist  = fmt.Errorf("invalid playlist file")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")

	// Builder errors
	ErrBuilderNotFound = fmt.Errorf("database builder not found")
	ErrBuilderFailed   = fmt.Errorf("database rebuild failed")

	// Orchestration errors
	ErrSyncFailed  = fmt.Errorf("sync failed")
	ErrEngineUnset = fmt.Errorf("engine dependency not initialized")
	ErrTimeout     = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
