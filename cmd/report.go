package main

import (
	"context"
	"fmt"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/formatter"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/urfave/cli/v3"
)

// Report builds a device inventory and exports it in the requested format.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	mount, err := r.deviceMount(cmd)
	if err != nil {
		return err
	}

	vol, err := device.Validate(mount)
	if err != nil {
		return err
	}

	report, err := formatter.BuildDeviceReport(vol)
	if err != nil {
		return err
	}

	format := cmd.String("format")

	if cmd.Bool("stdout") {
		var data []byte
		switch format {
		case "csv":
			data, err = formatter.ExportToCSV(report)
		case "markdown", "md":
			data, err = formatter.ExportToMarkdown(report)
		case "text", "txt":
			data, err = formatter.ExportToText(report)
		case "json":
			data, err = formatter.ToJSON(report)
		default:
			return fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, format)
		}
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	path, err := formatter.WriteReport(report, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Report written to %s (%d tracks, %d playlists)\n", path, len(report.Tracks), len(report.Playlists))
	return nil
}
