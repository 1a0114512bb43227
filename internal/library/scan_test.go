package library

import (
	"context"
	"path/filepath"
	"testing"
)

func TestIsAudioFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"song.mp3", true},
		{"Song.MP3", true},
		{"book.m4b", true},
		{"drm.m4p", true},
		{"audible.aa", true},
		{"raw.wav", true},
		{"clip.ogg", false},
		{"cover.jpg", false},
		{"noext", false},
	}
	for _, tc := range cases {
		if got := IsAudioFile(tc.path); got != tc.want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestScan(t *testing.T) {
	t.Run("collects tracks recursively with relative paths", func(t *testing.T) {
		dir := t.TempDir()
		mustWrite(t, filepath.Join(dir, "one.mp3"), "aaaa")
		mustWrite(t, filepath.Join(dir, "Album", "two.m4a"), "bbbbbb")
		mustWrite(t, filepath.Join(dir, "Album", "cover.jpg"), "img")
		mustWrite(t, filepath.Join(dir, ".hidden", "three.mp3"), "cc")
		mustWrite(t, filepath.Join(dir, ".DS_Store"), "junk")

		lib, err := NewScanner(nil).Scan(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}

		if len(lib.Tracks) != 2 {
			t.Fatalf("got %d tracks, want 2: %+v", len(lib.Tracks), lib.Tracks)
		}
		if lib.Tracks[0].Rel != "one.mp3" {
			t.Errorf("first rel = %q", lib.Tracks[0].Rel)
		}
		if lib.Tracks[1].Rel != "Album/two.m4a" {
			t.Errorf("second rel = %q", lib.Tracks[1].Rel)
		}
		if lib.TotalBytes() != 10 {
			t.Errorf("TotalBytes = %d, want 10", lib.TotalBytes())
		}
	})

	t.Run("parses playlists found in the music tree", func(t *testing.T) {
		dir := t.TempDir()
		mustWrite(t, filepath.Join(dir, "one.mp3"), "a")
		mustWrite(t, filepath.Join(dir, "favs.m3u"), "one.mp3\n")

		lib, err := NewScanner(nil).Scan(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(lib.Playlists) != 1 {
			t.Fatalf("got %d playlists, want 1", len(lib.Playlists))
		}
		if lib.Playlists[0].Name != "favs" {
			t.Errorf("playlist name = %q", lib.Playlists[0].Name)
		}
	})

	t.Run("separate playlist directory is scanned too", func(t *testing.T) {
		music := t.TempDir()
		playlists := t.TempDir()
		mustWrite(t, filepath.Join(music, "one.mp3"), "a")
		mustWrite(t, filepath.Join(playlists, "road.m3u"), filepath.Join(music, "one.mp3")+"\n")

		lib, err := NewScanner(nil).Scan(context.Background(), music, playlists)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(lib.Playlists) != 1 || lib.Playlists[0].Name != "road" {
			t.Fatalf("playlists = %+v", lib.Playlists)
		}
		if lib.Playlists[0].Tracks[0] != filepath.Join(music, "one.mp3") {
			t.Errorf("entry = %q", lib.Playlists[0].Tracks[0])
		}
	})

	t.Run("missing music directory fails", func(t *testing.T) {
		if _, err := NewScanner(nil).Scan(context.Background(), filepath.Join(t.TempDir(), "gone"), ""); err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("cancelled context stops the walk", func(t *testing.T) {
		dir := t.TempDir()
		mustWrite(t, filepath.Join(dir, "one.mp3"), "a")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewScanner(nil).Scan(ctx, dir, ""); err == nil {
			t.Error("expected context error")
		}
	})
}
