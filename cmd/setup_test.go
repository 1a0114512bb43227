package main

import (
	"io"
	"path/filepath"
	"testing"

	helpers "github.com/ipodkit/shuffleport/internal/testing"
)

func TestSetupCommand(t *testing.T) {
	t.Run("creates the config and history database", func(t *testing.T) {
		dir := t.TempDir()
		cwd := helpers.MustGetwd(t)
		helpers.MustChdir(t, dir)
		defer helpers.MustChdir(t, cwd)

		r := testRunner(nil, io.Discard)
		if err := runCLI(t, r, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		helpers.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		helpers.AssertFileExists(t, filepath.Join(dir, "shuffleport.db"))
	})

	t.Run("keeps an existing config file", func(t *testing.T) {
		dir := t.TempDir()
		cwd := helpers.MustGetwd(t)
		helpers.MustChdir(t, dir)
		defer helpers.MustChdir(t, cwd)

		configPath := filepath.Join(dir, "config.toml")
		helpers.MustWriteFile(t, configPath, "[database]\npath = \"history.db\"\n")

		r := testRunner(nil, io.Discard)
		if err := runCLI(t, r, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if got := helpers.MustReadFile(t, configPath); got != "[database]\npath = \"history.db\"\n" {
			t.Errorf("config overwritten: %q", got)
		}
		helpers.AssertFileExists(t, filepath.Join(dir, "history.db"))
	})
}
