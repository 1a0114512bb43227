package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
	"github.com/ipodkit/shuffleport/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for device transfers.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.engine == nil {
		return fmt.Errorf("%w: sync engine not initialized", shared.ErrEngineUnset)
	}

	music := r.musicDir(cmd)
	if music == "" {
		return fmt.Errorf("%w: no music directory given (use --music or set library.music_dir)", shared.ErrMissingArgument)
	}

	planOpts := tasks.PlanOpts{
		MusicDir:      music,
		PlaylistDir:   r.playlistDir(cmd),
		Prune:         r.config.Sync.Prune,
		RenameUnicode: r.config.Builder.RenameUnicode,
	}
	runOpts := r.runOptions(cmd)

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/shuffleport-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.engine, planOpts, runOpts)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
