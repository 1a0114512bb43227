package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/ipodkit/shuffleport/internal/builder"
	"github.com/ipodkit/shuffleport/internal/library"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	builder *builder.Builder
	db      *sql.DB
	logger  *log.Logger
	output  io.Writer
	engine  tasks.SyncEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Builder *builder.Builder
	DB      *sql.DB
	States  tasks.FileStateCacher
	History tasks.HistoryRecorder
	Logger  *log.Logger
	Output  io.Writer
	Engine  tasks.SyncEngine // Overrides the default engine when set (tests)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Builder == nil {
		opts.Builder = builder.New(opts.Config.Builder.Binary, opts.Logger)
	}

	engine := opts.Engine
	if engine == nil {
		scanner := library.NewScanner(opts.Logger)
		engine = tasks.NewEngine(scanner, opts.Builder, opts.States, opts.History, opts.Logger)
	}

	return &Runner{
		config:  opts.Config,
		builder: opts.Builder,
		db:      opts.DB,
		logger:  opts.Logger,
		output:  opts.Output,
		engine:  engine,
	}
}

// SetLogger swaps the runner's logger, used when the TUI takes over the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, deviceCommand, syncCommand, dbCommand, auditCommand, historyCommand, reportCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// musicDir resolves the source music directory from a flag or the config.
func (r *Runner) musicDir(cmd *cli.Command) string {
	if dir := cmd.String("music"); dir != "" {
		return shared.ExpandPath(dir)
	}
	return shared.ExpandPath(r.config.Library.MusicDir)
}

// playlistDir resolves the playlist directory from a flag or the config.
// Empty means playlists live alongside the music.
func (r *Runner) playlistDir(cmd *cli.Command) string {
	if dir := cmd.String("playlists"); dir != "" {
		return shared.ExpandPath(dir)
	}
	return shared.ExpandPath(r.config.Library.PlaylistDir)
}

// deviceMount resolves the device mount point from a flag or the config.
func (r *Runner) deviceMount(cmd *cli.Command) (string, error) {
	if mount := cmd.String("device"); mount != "" {
		return mount, nil
	}
	if r.config.Device.Mount != "" {
		return r.config.Device.Mount, nil
	}
	return "", fmt.Errorf("%w: no device mount given (use --device or set device.mount)", shared.ErrMissingArgument)
}

// builderOptions merges builder settings from the config with command flags.
func (r *Runner) builderOptions(cmd *cli.Command) builder.Options {
	conf := r.config.Builder
	opts := builder.Options{
		TrackVoiceover:    conf.TrackVoiceover,
		PlaylistVoiceover: conf.PlaylistVoiceover,
		RenameUnicode:     conf.RenameUnicode,
		TrackGain:         conf.TrackGain,
		AutoDirPlaylists:  conf.AutoDirPlaylists,
		AutoID3Playlists:  conf.AutoID3Playlists,
	}

	if cmd.Bool("track-voiceover") {
		opts.TrackVoiceover = true
	}
	if cmd.Bool("playlist-voiceover") {
		opts.PlaylistVoiceover = true
	}
	if cmd.Bool("rename-unicode") {
		opts.RenameUnicode = true
	}
	if gain := cmd.Int("gain"); gain > 0 {
		opts.TrackGain = int(gain)
	}
	if cmd.IsSet("auto-dir-playlists") {
		depth := int(cmd.Int("auto-dir-playlists"))
		opts.AutoDirPlaylists = &depth
	}
	if tmpl := cmd.String("auto-id3-playlists"); tmpl != "" {
		opts.AutoID3Playlists = &tmpl
	}
	if cmd.Bool("verbose") {
		opts.Verbose = true
	}

	return opts
}

// runOptions merges sync settings from the config with command flags.
func (r *Runner) runOptions(cmd *cli.Command) tasks.RunOpts {
	opts := tasks.RunOpts{
		Workers:     r.config.Sync.Workers,
		ThrottleBps: r.config.Sync.ThrottleMiBps * 1024 * 1024,
		Builder:     r.builderOptions(cmd),
	}
	if workers := cmd.Int("workers"); workers > 0 {
		opts.Workers = int(workers)
	}
	if throttle := cmd.Float("throttle"); throttle > 0 {
		opts.ThrottleBps = throttle * 1024 * 1024
	}
	return opts
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
