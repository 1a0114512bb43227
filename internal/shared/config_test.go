package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Library.MusicDir != "~/Music/shuffle" {
		t.Errorf("MusicDir = %q", config.Library.MusicDir)
	}
	if config.Builder.Binary != "shuffle-db" {
		t.Errorf("Binary = %q", config.Builder.Binary)
	}
	if config.Device.PollIntervalMS != 500 || config.Device.SettleTimeoutMS != 10000 {
		t.Errorf("device timing = %d/%d", config.Device.PollIntervalMS, config.Device.SettleTimeoutMS)
	}
	if config.Sync.Workers != 4 || config.Sync.Prune {
		t.Errorf("sync = workers %d prune %v", config.Sync.Workers, config.Sync.Prune)
	}
	if config.Database.Path != "shuffleport.db" {
		t.Errorf("database path = %q", config.Database.Path)
	}
	if config.Builder.AutoDirPlaylists != nil {
		t.Error("AutoDirPlaylists should default to unset")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("parses a config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[library]
music_dir = "/srv/music"

[device]
mount = "/mnt/ipod"

[builder]
track_gain = 30
auto_dir_playlists = -1

[sync]
throttle_mibps = 2.5
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if config.Library.MusicDir != "/srv/music" {
			t.Errorf("MusicDir = %q", config.Library.MusicDir)
		}
		if config.Device.Mount != "/mnt/ipod" {
			t.Errorf("Mount = %q", config.Device.Mount)
		}
		if config.Builder.TrackGain != 30 {
			t.Errorf("TrackGain = %d", config.Builder.TrackGain)
		}
		if config.Builder.AutoDirPlaylists == nil || *config.Builder.AutoDirPlaylists != -1 {
			t.Errorf("AutoDirPlaylists = %v", config.Builder.AutoDirPlaylists)
		}
		if config.Sync.ThrottleMiBps != 2.5 {
			t.Errorf("ThrottleMiBps = %v", config.Sync.ThrottleMiBps)
		}
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "gone.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("fails on invalid TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("not = [valid"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestCreateConfigFile(t *testing.T) {
	t.Run("writes the example config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("CreateConfigFile failed: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("written config does not parse: %v", err)
		}
		if config.Builder.Binary != "shuffle-db" {
			t.Errorf("Binary = %q", config.Builder.Binary)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("# mine"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error for existing file")
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cases := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/Music", filepath.Join(home, "Music")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~user/path", "~user/path"},
	}
	for _, tc := range cases {
		if got := ExpandPath(tc.in); got != tc.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if !strings.HasPrefix(ExpandPath("~/x"), home) {
		t.Error("tilde not expanded to home")
	}
}
