// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// libraryFlags are shared by every command that reads the source library.
func libraryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "music",
			Aliases: []string{"m"},
			Usage:   "Source music directory",
		},
		&cli.StringFlag{
			Name:    "playlists",
			Aliases: []string{"p"},
			Usage:   "Playlist directory (defaults to the music directory)",
		},
	}
}

func deviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "Device mount point",
	}
}

// builderFlags mirror the external builder's options.
func builderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "track-voiceover",
			Usage: "Generate per-track voiceover clips",
		},
		&cli.BoolFlag{
			Name:  "playlist-voiceover",
			Usage: "Generate per-playlist voiceover clips",
		},
		&cli.BoolFlag{
			Name:  "rename-unicode",
			Usage: "Rename files whose names the device firmware cannot address",
		},
		&cli.IntFlag{
			Name:  "gain",
			Usage: "Volume gain 0-99 applied to all tracks",
		},
		&cli.IntFlag{
			Name:  "auto-dir-playlists",
			Usage: "Generate per-folder playlists to the given depth (-1 for unlimited)",
		},
		&cli.StringFlag{
			Name:  "auto-id3-playlists",
			Usage: "Generate playlists from an ID3 tag template, e.g. '{artist}'",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Verbose builder output",
		},
	}
}

// setupCommand handles initialization of the config file and history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the history database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// deviceCommand handles device discovery and inspection.
func deviceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "device",
		Aliases: []string{"dev"},
		Usage:   "Device discovery and inspection",
		Commands: []*cli.Command{
			{
				Name:  "detect",
				Usage: "List mounted volumes that look like a device",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DeviceDetect,
			},
			{
				Name:   "validate",
				Usage:  "Check that a mount point is a usable device",
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.DeviceValidate,
			},
			{
				Name:  "watch",
				Usage: "Watch for devices being connected or removed",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "interval",
						Usage: "Poll interval in milliseconds",
					},
				},
				Action: r.DeviceWatch,
			},
		},
	}
}

// syncCommand handles transfer planning and execution.
func syncCommand(r *Runner) *cli.Command {
	runFlags := append(libraryFlags(), deviceFlag())
	runFlags = append(runFlags,
		&cli.BoolFlag{
			Name:  "prune",
			Usage: "Remove device files with no source counterpart",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent copy workers",
		},
		&cli.FloatFlag{
			Name:  "throttle",
			Usage: "Copy throughput cap in MiB/s (0 disables)",
		},
		&cli.BoolFlag{
			Name:  "skip-rebuild",
			Usage: "Copy files but leave the device database untouched",
		},
	)
	runFlags = append(runFlags, builderFlags()...)

	planFlags := append(libraryFlags(), deviceFlag())
	planFlags = append(planFlags,
		&cli.BoolFlag{
			Name:  "prune",
			Usage: "Include files that would be removed",
		},
		&cli.BoolFlag{
			Name:  "rename-unicode",
			Usage: "Plan destinations with firmware-safe names",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
	)

	return &cli.Command{
		Name:  "sync",
		Usage: "Copy music and playlists onto a device",
		Commands: []*cli.Command{
			{
				Name:   "plan",
				Usage:  "Show what a sync would do without writing anything",
				Flags:  planFlags,
				Action: r.SyncPlan,
			},
			{
				Name:   "run",
				Usage:  "Copy files, write playlists, then rebuild the device database",
				Flags:  runFlags,
				Action: r.SyncRun,
			},
		},
	}
}

// dbCommand handles the on-device database.
func dbCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{deviceFlag()}
	flags = append(flags, builderFlags()...)

	return &cli.Command{
		Name:  "db",
		Usage: "On-device database operations",
		Commands: []*cli.Command{
			{
				Name:   "rebuild",
				Usage:  "Rebuild the device database without copying anything",
				Flags:  flags,
				Action: r.DBRebuild,
			},
		},
	}
}

// auditCommand inspects a device without modifying it.
func auditCommand(r *Runner) *cli.Command {
	flags := append(libraryFlags(), deviceFlag())
	flags = append(flags, &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	})

	return &cli.Command{
		Name:   "audit",
		Usage:  "Report orphaned files, dangling playlist entries and database staleness",
		Flags:  flags,
		Action: r.Audit,
	}
}

// historyCommand queries recorded sync runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Sync run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded sync runs, newest first",
				Flags: []cli.Flag{
					deviceFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (running, completed, partial, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
		},
	}
}

// reportCommand exports a device inventory.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export a device inventory report",
		Flags: []cli.Flag{
			deviceFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: csv, markdown, text or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (derived from the device when omitted)",
			},
			&cli.BoolFlag{
				Name:  "stdout",
				Usage: "Print the report instead of writing a file",
			},
		},
		Action: r.Report,
	}
}

// tuiCommand returns the top-level TUI command for interactive transfers.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for device transfers",
		Flags:   append(libraryFlags(), builderFlags()...),
		Action:  r.TUI,
	}
}
