package tasks

import (
	"fmt"

	"github.com/ipodkit/shuffleport/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ScanSource Phase = iota
	ScanDevice
	BuildPlan
	CopyFiles
	WritePlaylists
	PruneFiles
	RebuildDB
	AuditDevice
)

func (p Phase) String() string {
	switch p {
	case ScanSource:
		return "scan_source"
	case ScanDevice:
		return "scan_device"
	case BuildPlan:
		return "build_plan"
	case CopyFiles:
		return "copy_files"
	case WritePlaylists:
		return "write_playlists"
	case PruneFiles:
		return "prune_files"
	case RebuildDB:
		return "rebuild_db"
	case AuditDevice:
		return "audit_device"
	default:
		return ""
	}
}

func scanSourceUpdate(dir string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Scanning music library (%s)...", dir),
	}
}

func scanDeviceUpdate(mount string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanDevice,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Reading device contents (%s)...", mount),
	}
}

func planReadyUpdate(plan *Plan) ProgressUpdate {
	return ProgressUpdate{
		Phase: BuildPlan,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("Plan ready: %d to copy, %d unchanged, %s",
			plan.CopyCount+plan.RefreshCount, plan.SkipCount, shared.HumanBytes(plan.CopyBytes)),
		Data: plan,
	}
}

func copyFileUpdate(step, total int, rel string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CopyFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, rel),
	}
}

func copyFailedUpdate(step, total int, rel string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CopyFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, rel, err),
	}
}

func writePlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Writing playlist: %s", step, total, name),
	}
}

func pruneUpdate(step, total int, rel string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PruneFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing: %s", step, total, rel),
	}
}

func rebuildStartUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   RebuildDB,
		Step:    0,
		Total:   1,
		Message: "Rebuilding device database. This may take a while...",
	}
}

func rebuildLineUpdate(line string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RebuildDB,
		Step:    0,
		Total:   1,
		Message: line,
	}
}

func rebuildDoneUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   RebuildDB,
		Step:    1,
		Total:   1,
		Message: "Device database rebuilt",
	}
}

func auditUpdate(message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AuditDevice,
		Step:    1,
		Total:   1,
		Message: message,
	}
}
