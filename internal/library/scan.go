package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// Extensions recognized by the device database builder.
var (
	audioExt = map[string]bool{
		".mp3": true, ".m4a": true, ".m4b": true, ".m4p": true, ".aa": true, ".wav": true,
	}
	playlistExt = map[string]bool{
		".pls": true, ".m3u": true,
	}
)

// IsAudioFile reports whether path has an audio extension the device can index.
func IsAudioFile(path string) bool {
	return audioExt[strings.ToLower(filepath.Ext(path))]
}

// IsPlaylistFile reports whether path has a recognized playlist extension.
func IsPlaylistFile(path string) bool {
	return playlistExt[strings.ToLower(filepath.Ext(path))]
}

// TrackFile is a single audio file found in the source library.
type TrackFile struct {
	Path    string    // Absolute path on the local filesystem
	Rel     string    // Path relative to the library root, slash-separated
	Size    int64     // File size in bytes
	ModTime time.Time // Source mtime, used for staleness comparison
}

// Key returns the normalized comparison key for this track's relative path.
func (t TrackFile) Key() string {
	return shared.NormalizePathKey(t.Rel)
}

// Library is the result of scanning the source tree.
type Library struct {
	Root      string
	Tracks    []TrackFile
	Playlists []Playlist
}

// TotalBytes sums the size of every track in the library.
func (l *Library) TotalBytes() int64 {
	var n int64
	for _, t := range l.Tracks {
		n += t.Size
	}
	return n
}

// Scanner walks source directories and collects tracks and playlists.
type Scanner struct {
	logger *log.Logger
}

// NewScanner creates a Scanner. A nil logger falls back to the default logger.
func NewScanner(logger *log.Logger) *Scanner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scanner{logger: logger}
}

// Scan walks musicDir collecting audio files and playlist files, then parses
// any additional playlists found in playlistDir (optional, may be empty).
func (s *Scanner) Scan(ctx context.Context, musicDir, playlistDir string) (*Library, error) {
	root, err := filepath.Abs(shared.ExpandPath(musicDir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve music directory: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", shared.ErrLibraryNotFound, musicDir)
	}

	lib := &Library{Root: root}

	var playlistFiles []string
	err = walkSorted(root, func(path string, entry os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		switch {
		case IsAudioFile(path):
			lib.Tracks = append(lib.Tracks, TrackFile{
				Path:    path,
				Rel:     filepath.ToSlash(rel),
				Size:    entry.Size(),
				ModTime: entry.ModTime(),
			})
		case IsPlaylistFile(path):
			playlistFiles = append(playlistFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk music directory: %w", err)
	}

	if playlistDir != "" {
		dir, err := filepath.Abs(shared.ExpandPath(playlistDir))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve playlist directory: %w", err)
		}
		err = walkSorted(dir, func(path string, entry os.FileInfo) error {
			if IsPlaylistFile(path) {
				playlistFiles = append(playlistFiles, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk playlist directory: %w", err)
		}
	}

	for _, path := range playlistFiles {
		pl, err := ParsePlaylistFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable playlist", "path", path, "error", err)
			continue
		}
		lib.Playlists = append(lib.Playlists, *pl)
	}

	s.logger.Info("library scanned", "root", root, "tracks", len(lib.Tracks), "playlists", len(lib.Playlists))
	return lib, nil
}

// walkSorted visits every regular file under root with directories and
// filenames in sorted, case-insensitive order. Hidden files and directories
// are skipped so macOS resource forks never reach the device.
func walkSorted(root string, fn func(path string, entry os.FileInfo) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	var dirs []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(root, name)
		if entry.IsDir() {
			dirs = append(dirs, full)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := fn(full, info); err != nil {
			return err
		}
	}

	for _, dir := range dirs {
		if err := walkSorted(dir, fn); err != nil {
			return err
		}
	}
	return nil
}
