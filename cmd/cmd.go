// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// syncCommand mirrors the liked songs library into the configured playlist
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "sync",
		Aliases: []string{"savedsongs"},
		Usage:   "Mirror liked songs into the configured playlist and rotate the refresh token secret",
		Action:  r.Sync,
	}
}

// backupCommand copies generated playlists into their backups
func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Copy a generated playlist into its backup playlist",
		Commands: []*cli.Command{
			{
				Name:    "discover-weekly",
				Aliases: []string{"discoverweekly"},
				Usage:   "Append this week's Discover Weekly to its backup playlist",
				Action:  r.Backup(shared.ModeDiscoverWeekly),
			},
			{
				Name:    "release-radar",
				Aliases: []string{"releaseradar"},
				Usage:   "Append this week's Release Radar to its backup playlist",
				Action:  r.Backup(shared.ModeReleaseRadar),
			},
		},
	}
}

// authCommand handles Spotify authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize in the browser and save the refresh token to the config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "token",
				Usage: "Exchange the configured refresh token and show its account and expiry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// secretsCommand handles the repository secret holding the refresh token
func secretsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Manage the repository secret that stores the refresh token",
		Commands: []*cli.Command{
			{
				Name:   "publish",
				Usage:  "Refresh the token once and store it as the repository secret",
				Action: r.SecretsPublish,
			},
		},
	}
}

// historyCommand reads the sync log
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect the sync log",
		Commands: []*cli.Command{
			{
				Name:  "runs",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list (0 for all)",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryRuns,
			},
			{
				Name:  "log",
				Usage: "Show the songs added and removed by a run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run",
						Usage: "Run sequence number, id or \"latest\"",
						Value: "latest",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Show the log of every run",
					},
					&cli.StringFlag{
						Name:  "track",
						Usage: "Show every change of one track id",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryLog,
			},
			{
				Name:  "export",
				Usage: "Export the track log and library snapshot to CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Base path of the CSV files",
						Value:   "likesync",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file if missing, initialize the sync log and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
