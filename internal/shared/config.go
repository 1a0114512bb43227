package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Device   DeviceConfig   `toml:"device"`
	Builder  BuilderConfig  `toml:"builder"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
}

// LibraryConfig locates the source music and playlist directories.
type LibraryConfig struct {
	MusicDir    string `toml:"music_dir"`
	PlaylistDir string `toml:"playlist_dir"`
}

// DeviceConfig contains device mount and detection settings.
type DeviceConfig struct {
	Mount           string `toml:"mount"`
	PollIntervalMS  int    `toml:"poll_interval_ms"`
	SettleTimeoutMS int    `toml:"settle_timeout_ms"`
}

// BuilderConfig configures the external iTunesSD builder invocation.
type BuilderConfig struct {
	Binary            string  `toml:"binary"`
	TrackVoiceover    bool    `toml:"track_voiceover"`
	PlaylistVoiceover bool    `toml:"playlist_voiceover"`
	RenameUnicode     bool    `toml:"rename_unicode"`
	TrackGain         int     `toml:"track_gain"`
	AutoDirPlaylists  *int    `toml:"auto_dir_playlists"`
	AutoID3Playlists  *string `toml:"auto_id3_playlists"`
}

// SyncConfig contains copy-phase tuning knobs.
type SyncConfig struct {
	Workers       int     `toml:"workers"`
	ThrottleMiBps float64 `toml:"throttle_mibps"`
	Prune         bool    `toml:"prune"`
}

// DatabaseConfig contains sync history database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
