package library

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ipodkit/shuffleport/internal/shared"
)

// Playlist is an ordered set of track paths parsed from a playlist source.
type Playlist struct {
	Name   string   // Display name, derived from the file or directory name
	Origin string   // Absolute path of the .m3u/.pls file or directory
	Tracks []string // Absolute track paths in playlist order
}

// ParsePlaylistFile parses a .m3u or .pls playlist file, or builds a
// directory playlist when path is a directory. Relative entries are resolved
// against the playlist file's directory.
func ParsePlaylistFile(path string) (*Playlist, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, path)
	}
	if info.IsDir() {
		return DirectoryPlaylist(abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	var entries []string
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".m3u":
		entries, err = parseM3U(f)
	case ".pls":
		entries, err = parsePLS(f)
	default:
		return nil, fmt.Errorf("%w: unknown extension %s", shared.ErrInvalidPlaylist, filepath.Ext(abs))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPlaylist, err)
	}

	base := filepath.Dir(abs)
	tracks := make([]string, 0, len(entries))
	for _, entry := range entries {
		tracks = append(tracks, resolveEntry(entry, base))
	}

	return &Playlist{
		Name:   nameFromPath(abs),
		Origin: abs,
		Tracks: tracks,
	}, nil
}

// DirectoryPlaylist builds a playlist from every audio file beneath dir,
// recursively and in sorted order.
func DirectoryPlaylist(dir string) (*Playlist, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}

	var tracks []string
	err = walkSorted(abs, func(path string, _ os.FileInfo) error {
		if IsAudioFile(path) {
			tracks = append(tracks, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk playlist directory: %w", err)
	}

	return &Playlist{
		Name:   filepath.Base(abs),
		Origin: abs,
		Tracks: tracks,
	}, nil
}

// parseM3U reads one path per line, skipping comments and blank lines.
// Extended M3U directives all start with '#', so they fall out naturally.
func parseM3U(r io.Reader) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, scanner.Err()
}

// parsePLS reads FileN=path entries and returns them ordered by N.
// Values are URL-unescaped and a file:// prefix is stripped.
func parsePLS(r io.Reader) ([]string, error) {
	type numbered struct {
		num  int
		path string
	}
	var found []numbered

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok || !strings.HasPrefix(strings.ToLower(key), "file") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSpace(key[4:]))
		if err != nil {
			continue
		}
		path := strings.TrimSpace(value)
		if unescaped, err := url.QueryUnescape(path); err == nil {
			path = unescaped
		}
		if strings.HasPrefix(strings.ToLower(path), "file://") {
			path = path[7:]
		}
		found = append(found, numbered{num: num, path: strings.TrimSpace(path)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })

	entries := make([]string, len(found))
	for i, f := range found {
		entries[i] = f.path
	}
	return entries, nil
}

// resolveEntry makes a playlist entry absolute. Entries that do not exist as
// given are retried relative to the playlist file's directory.
func resolveEntry(entry, base string) string {
	entry = filepath.FromSlash(entry)
	if filepath.IsAbs(entry) {
		return entry
	}
	if _, err := os.Stat(entry); err == nil {
		abs, err := filepath.Abs(entry)
		if err == nil {
			return abs
		}
	}
	return filepath.Join(base, entry)
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
