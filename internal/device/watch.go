package device

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// EventKind distinguishes watcher events.
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return ""
	}
}

// Event is emitted by a Watcher when a device appears or disappears.
type Event struct {
	Kind   EventKind
	Volume *Volume // Set for Connected events
	Mount  string  // Mount point, set for both kinds
}

// Watcher polls for device connect/disconnect transitions.
//
// Polling matches how the original device tooling worked; volumes mounted by
// the OS appear with a delay after USB attach, so a fresh detection is
// retried until the settle timeout elapses.
type Watcher struct {
	interval time.Duration
	settle   time.Duration
	logger   *log.Logger

	// detect is swappable for tests.
	detect func() ([]Volume, error)
}

// NewWatcher creates a Watcher with the given poll interval and mount-settle
// timeout. Non-positive values fall back to 500ms and 10s.
func NewWatcher(interval, settle time.Duration, logger *log.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if settle <= 0 {
		settle = 10 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Watcher{interval: interval, settle: settle, logger: logger, detect: Detect}
}

// Watch polls until ctx is cancelled, sending an Event on each transition.
// The returned channel is closed when the watcher stops.
func (w *Watcher) Watch(ctx context.Context) <-chan Event {
	events := make(chan Event, 4)

	go func() {
		defer close(events)

		known := make(map[string]bool)
		if vols, err := w.detect(); err == nil {
			for _, v := range vols {
				known[v.Mount] = true
			}
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current := make(map[string]Volume)
			if vols, err := w.detect(); err == nil {
				for _, v := range vols {
					current[v.Mount] = v
				}
			}

			for mount, vol := range current {
				if !known[mount] {
					known[mount] = true
					w.logger.Info("device connected", "mount", mount)
					v := vol
					select {
					case events <- Event{Kind: Connected, Volume: &v, Mount: mount}:
					case <-ctx.Done():
						return
					}
				}
			}

			for mount := range known {
				if _, ok := current[mount]; !ok {
					delete(known, mount)
					w.logger.Info("device disconnected", "mount", mount)
					select {
					case events <- Event{Kind: Disconnected, Mount: mount}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return events
}

// WaitForVolume blocks until a device is detected or the settle timeout
// elapses. Used after a connect event so callers act on a mounted volume.
func (w *Watcher) WaitForVolume(ctx context.Context) (*Volume, error) {
	deadline := time.Now().Add(w.settle)
	for {
		if vols, err := w.detect(); err == nil && len(vols) > 0 {
			return &vols[0], nil
		}
		if time.Now().After(deadline) {
			return nil, shared.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.interval):
		}
	}
}
