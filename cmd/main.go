package main

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/ipodkit/shuffleport/internal/repositories"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	// The history database is optional; without it syncs still work but
	// nothing is recorded and every plan rescans from scratch.
	var db *sql.DB
	var states tasks.FileStateCacher
	var history tasks.HistoryRecorder

	dbPath := shared.ExpandPath(config.Database.Path)
	if _, err := os.Stat(dbPath); err == nil {
		if opened, err := shared.NewDatabase(dbPath); err == nil {
			shared.ConfigureDatabase(opened, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			db = opened
			states = repositories.NewFileStateRepository(db)
			history = repositories.NewSyncRunRepository(db)
		} else {
			logger.Warn("failed to open history database", "path", dbPath, "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		DB:      db,
		States:  states,
		History: history,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "shuffleport",
		Usage:    "Sync music and playlists onto iPod Shuffle devices",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	err := app.Run(context.Background(), os.Args)
	if db != nil {
		db.Close()
	}
	if err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
