// Package builder invokes the external iTunesSD database builder.
//
// The builder binary (IPod-Shuffle-4g contract) owns the device's binary
// database format; this package treats it as a black box that either
// succeeds or fails. Stdout and stderr are streamed line by line to the
// caller so long rebuilds surface progress as it happens.
package builder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// Options mirror the external builder's command-line contract.
type Options struct {
	TrackVoiceover    bool    // -t: generate per-track voiceover clips
	PlaylistVoiceover bool    // -p: generate per-playlist voiceover clips
	RenameUnicode     bool    // -u: rename files the FAT firmware cannot address
	TrackGain         int     // -g: volume gain 0-99 applied to all tracks
	AutoDirPlaylists  *int    // -d: per-folder playlists to the given depth, -1 unlimited
	AutoID3Playlists  *string // -i: ID3-template playlists, e.g. "{artist}"
	Verbose           bool    // -v
}

// Validate checks option ranges before the binary is invoked.
func (o Options) Validate() error {
	if o.TrackGain < 0 || o.TrackGain > 99 {
		return fmt.Errorf("%w: track gain %d outside 0-99", shared.ErrInvalidFlag, o.TrackGain)
	}
	return nil
}

// Result summarizes one builder invocation.
type Result struct {
	Output   []string      // Captured output lines, in order
	Duration time.Duration
}

// Builder runs the external database builder binary.
type Builder struct {
	bin    string
	logger *log.Logger

	// run and lookPath are swappable for tests.
	run      func(ctx context.Context, name string, args []string, onLine func(string)) error
	lookPath func(string) (string, error)
}

// New creates a Builder for the given binary name or path.
func New(bin string, logger *log.Logger) *Builder {
	if bin == "" {
		bin = "shuffle-db"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	b := &Builder{bin: bin, logger: logger}
	b.run = b.execStreaming
	b.lookPath = exec.LookPath
	return b
}

// Available reports whether the builder binary can be found in PATH.
func (b *Builder) Available() error {
	if _, err := b.lookPath(b.bin); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrBuilderNotFound, b.bin)
	}
	return nil
}

// Args assembles the builder's argument list for a mount point.
func (b *Builder) Args(mount string, opts Options) []string {
	var args []string
	if opts.TrackVoiceover {
		args = append(args, "-t")
	}
	if opts.PlaylistVoiceover {
		args = append(args, "-p")
	}
	if opts.RenameUnicode {
		args = append(args, "-u")
	}
	if opts.TrackGain > 0 {
		args = append(args, "-g", strconv.Itoa(opts.TrackGain))
	}
	if opts.AutoDirPlaylists != nil {
		args = append(args, "-d", strconv.Itoa(*opts.AutoDirPlaylists))
	}
	if opts.AutoID3Playlists != nil {
		args = append(args, "-i", *opts.AutoID3Playlists)
	}
	if opts.Verbose {
		args = append(args, "-v")
	}
	return append(args, mount)
}

// Rebuild runs the builder against the mounted volume. Each output line is
// passed to onLine (may be nil) as it arrives. A non-zero exit wraps
// [shared.ErrBuilderFailed]; context cancellation kills the process.
func (b *Builder) Rebuild(ctx context.Context, mount string, opts Options, onLine func(string)) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := b.Available(); err != nil {
		return nil, err
	}

	result := &Result{}
	capture := func(line string) {
		result.Output = append(result.Output, line)
		if onLine != nil {
			onLine(line)
		}
	}

	b.logger.Info("rebuilding device database", "binary", b.bin, "mount", mount)
	start := time.Now()

	if err := b.run(ctx, b.bin, b.Args(mount, opts), capture); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("%w: %v", shared.ErrBuilderFailed, err)
	}

	result.Duration = time.Since(start)
	b.logger.Info("database rebuilt", "duration", result.Duration)
	return result, nil
}

// execStreaming runs the command, feeding stdout and stderr lines to onLine.
func (b *Builder) execStreaming(ctx context.Context, name string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			mu.Lock()
			onLine(scanner.Text())
			mu.Unlock()
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	return cmd.Wait()
}
