package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ipodkit/shuffleport/internal/shared"
)

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name    string
		gain    int
		wantErr bool
	}{
		{"zero gain", 0, false},
		{"max gain", 99, false},
		{"negative gain", -1, true},
		{"gain too high", 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Options{TrackGain: tc.gain}.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	b := New("shuffle-db", nil)
	depth := -1
	tmpl := "{artist}"

	cases := []struct {
		name string
		opts Options
		want string
	}{
		{"no options", Options{}, "/mnt/ipod"},
		{"voiceover flags", Options{TrackVoiceover: true, PlaylistVoiceover: true}, "-t -p /mnt/ipod"},
		{"rename and gain", Options{RenameUnicode: true, TrackGain: 60}, "-u -g 60 /mnt/ipod"},
		{"auto playlists", Options{AutoDirPlaylists: &depth, AutoID3Playlists: &tmpl}, "-d -1 -i {artist} /mnt/ipod"},
		{"verbose", Options{Verbose: true}, "-v /mnt/ipod"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := strings.Join(b.Args("/mnt/ipod", tc.opts), " ")
			if got != tc.want {
				t.Errorf("Args = %q, want %q", got, tc.want)
			}
		})
	}
}

// testBuilder returns a Builder whose binary always resolves.
func testBuilder() *Builder {
	b := New("shuffle-db", nil)
	b.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	return b
}

func TestRebuild(t *testing.T) {
	t.Run("streams output lines and captures them", func(t *testing.T) {
		b := testBuilder()
		b.run = func(ctx context.Context, name string, args []string, onLine func(string)) error {
			onLine("scanning volume")
			onLine("writing database")
			return nil
		}

		var seen []string
		result, err := b.Rebuild(context.Background(), "/mnt/ipod", Options{}, func(line string) {
			seen = append(seen, line)
		})
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if len(result.Output) != 2 || result.Output[1] != "writing database" {
			t.Errorf("Output = %v", result.Output)
		}
		if len(seen) != 2 {
			t.Errorf("onLine saw %d lines, want 2", len(seen))
		}
	})

	t.Run("wraps process failure", func(t *testing.T) {
		b := testBuilder()
		b.run = func(ctx context.Context, name string, args []string, onLine func(string)) error {
			onLine("fatal: unreadable volume")
			return fmt.Errorf("exit status 1")
		}

		result, err := b.Rebuild(context.Background(), "/mnt/ipod", Options{}, nil)
		if !errors.Is(err, shared.ErrBuilderFailed) {
			t.Errorf("err = %v, want ErrBuilderFailed", err)
		}
		if len(result.Output) != 1 {
			t.Errorf("partial output not captured: %v", result.Output)
		}
	})

	t.Run("reports context cancellation as such", func(t *testing.T) {
		b := testBuilder()
		ctx, cancel := context.WithCancel(context.Background())
		b.run = func(ctx context.Context, name string, args []string, onLine func(string)) error {
			cancel()
			return fmt.Errorf("signal: killed")
		}

		_, err := b.Rebuild(ctx, "/mnt/ipod", Options{}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("invalid options fail before invocation", func(t *testing.T) {
		b := testBuilder()
		invoked := false
		b.run = func(ctx context.Context, name string, args []string, onLine func(string)) error {
			invoked = true
			return nil
		}

		_, err := b.Rebuild(context.Background(), "/mnt/ipod", Options{TrackGain: 120}, nil)
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("err = %v, want ErrInvalidFlag", err)
		}
		if invoked {
			t.Error("builder invoked despite invalid options")
		}
	})
}

func TestAvailable(t *testing.T) {
	b := New("definitely-not-a-real-binary-6412", nil)
	if err := b.Available(); !errors.Is(err, shared.ErrBuilderNotFound) {
		t.Errorf("err = %v, want ErrBuilderNotFound", err)
	}
}
