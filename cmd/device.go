package main

import (
	"context"
	"errors"
	"time"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/urfave/cli/v3"
)

// DeviceDetect probes the platform mount roots for connected devices.
func (r *Runner) DeviceDetect(ctx context.Context, cmd *cli.Command) error {
	volumes, err := device.Detect()
	if err != nil {
		if errors.Is(err, shared.ErrDeviceNotFound) {
			r.writePlain("No devices found.\n")
			return nil
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(volumes, true)
	}

	if len(volumes) == 0 {
		r.writePlain("No devices found.\n")
		return nil
	}

	r.writePlainHeader("Connected Devices")
	for i, vol := range volumes {
		label := vol.Label
		if label == "" {
			label = "(no label)"
		}
		r.writePlain("%d. %s  %s", i+1, vol.Mount, label)
		if vol.FreeBytes > 0 {
			r.writePlain("  %s free", shared.HumanBytes(int64(vol.FreeBytes)))
		}
		if !vol.HasControl {
			r.writePlain("  [uninitialized]")
		}
		r.writePlain("\n")
	}
	return nil
}

// DeviceValidate checks that a mount point is a usable, writable device.
func (r *Runner) DeviceValidate(ctx context.Context, cmd *cli.Command) error {
	mount, err := r.deviceMount(cmd)
	if err != nil {
		return err
	}

	vol, err := device.Validate(mount)
	if err != nil {
		return err
	}

	r.writePlain("✓ %s is a usable device\n", vol.Mount)
	if vol.Label != "" {
		r.writePlain("Label: %s\n", vol.Label)
	}
	r.writePlain("Initialized: %t\n", vol.HasControl)
	if vol.TotalBytes > 0 {
		r.writePlain("Capacity: %s (%s free)\n",
			shared.HumanBytes(int64(vol.TotalBytes)), shared.HumanBytes(int64(vol.FreeBytes)))
	}
	return nil
}

// DeviceWatch polls for device connect and disconnect events until interrupted.
func (r *Runner) DeviceWatch(ctx context.Context, cmd *cli.Command) error {
	interval := time.Duration(r.config.Device.PollIntervalMS) * time.Millisecond
	if ms := cmd.Int("interval"); ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	settle := time.Duration(r.config.Device.SettleTimeoutMS) * time.Millisecond

	watcher := device.NewWatcher(interval, settle, r.logger)
	r.writePlain("Watching for devices (ctrl+c to stop)...\n")

	for event := range watcher.Watch(ctx) {
		switch event.Kind {
		case device.Connected:
			r.writePlain("+ connected: %s\n", event.Volume.Mount)
		case device.Disconnected:
			r.writePlain("- removed: %s\n", event.Mount)
		}
	}
	return nil
}
