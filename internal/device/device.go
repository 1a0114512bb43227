// Package device locates and validates mounted iPod Shuffle volumes.
//
// Validation is filesystem-level: a valid volume is a writable directory that
// either already carries the iPod_Control layout or is an empty removable
// volume the layout can be created on. All destination paths are built
// through [SafeJoin], which refuses absolute paths and traversal outside the
// validated mount point; callers never write to a user-typed path directly.
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ipodkit/shuffleport/internal/shared"
)

// Well-known paths inside an iPod Shuffle volume.
const (
	ControlDir   = "iPod_Control"
	MusicDir     = "iPod_Control/Music"
	ITunesDir    = "iPod_Control/iTunes"
	DatabaseFile = "iPod_Control/iTunes/iTunesSD"

	// PlaylistDir is where playlist files are placed on the device; the
	// database builder picks up .m3u/.pls files anywhere on the volume.
	PlaylistDir = "Playlists"
)

// Volume is a validated iPod mount point.
type Volume struct {
	Mount      string // Absolute mount point path
	Label      string // Volume label (base name of the mount point)
	HasControl bool   // True when iPod_Control/ already exists
	FreeBytes  uint64 // Free space, 0 when unknown on this platform
	TotalBytes uint64 // Volume capacity, 0 when unknown
}

// MusicPath returns the absolute path of the on-device music directory.
func (v *Volume) MusicPath() string {
	return filepath.Join(v.Mount, filepath.FromSlash(MusicDir))
}

// DatabasePath returns the absolute path of the iTunesSD database file.
func (v *Volume) DatabasePath() string {
	return filepath.Join(v.Mount, filepath.FromSlash(DatabaseFile))
}

// Validate checks that path is a usable destination volume and returns its
// Volume descriptor. The checks mirror what desktop sync tools do before
// touching a device: the path must exist, be a directory, and be writable.
func Validate(path string) (*Volume, error) {
	abs, err := filepath.Abs(shared.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidDevice, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrDeviceNotFound, path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrDeviceNotFound, path)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidDevice, path)
	}

	if err := checkWritable(abs); err != nil {
		return nil, err
	}

	vol := &Volume{
		Mount: abs,
		Label: filepath.Base(abs),
	}

	if _, err := os.Stat(filepath.Join(abs, ControlDir)); err == nil {
		vol.HasControl = true
	}

	// Free space is best-effort; plans skip the space check when unknown.
	free, total, err := statFS(abs)
	if err == nil {
		vol.FreeBytes = free
		vol.TotalBytes = total
	}

	return vol, nil
}

// checkWritable verifies write access by creating and removing a probe file.
// Permission bits alone are unreliable on FAT mounts.
func checkWritable(dir string) error {
	probe := filepath.Join(dir, ".shuffleport-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrDeviceNotWritable, dir)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

// SafeJoin builds a destination path under mount from a relative path.
// Absolute paths and traversal outside the mount are rejected.
func SafeJoin(mount, rel string) (string, error) {
	if filepath.IsAbs(rel) || filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("%w: absolute path %q", shared.ErrUnsafePath, rel)
	}

	dest := filepath.Join(mount, filepath.FromSlash(rel))

	base := filepath.Clean(mount)
	if dest != base && !strings.HasPrefix(dest, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", shared.ErrUnsafePath, rel)
	}
	return dest, nil
}

// EnsureLayout creates the iPod_Control directory skeleton on the volume.
func EnsureLayout(vol *Volume) error {
	for _, dir := range []string{MusicDir, ITunesDir, PlaylistDir} {
		path, err := SafeJoin(vol.Mount, dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	vol.HasControl = true
	return nil
}

// Detect probes the platform's removable-volume roots for mounted iPods.
// A candidate qualifies if it carries iPod_Control/ or a volume label
// containing "ipod".
func Detect() ([]Volume, error) {
	var found []Volume
	for _, root := range detectRoots() {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			mount := filepath.Join(root, entry.Name())
			if !looksLikeIpod(mount, entry.Name()) {
				continue
			}
			vol, err := Validate(mount)
			if err != nil {
				continue
			}
			found = append(found, *vol)
		}
	}
	if len(found) == 0 {
		return nil, shared.ErrDeviceNotFound
	}
	return found, nil
}

func looksLikeIpod(mount, label string) bool {
	if _, err := os.Stat(filepath.Join(mount, ControlDir)); err == nil {
		return true
	}
	return strings.Contains(strings.ToLower(label), "ipod")
}

// detectRoots returns the directories where removable volumes appear on the
// current platform.
func detectRoots() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Volumes"}
	case "linux":
		roots := []string{"/media", "/mnt"}
		if u := os.Getenv("USER"); u != "" {
			roots = append(roots,
				filepath.Join("/media", u),
				filepath.Join("/run/media", u),
			)
		}
		return roots
	default:
		return nil
	}
}
