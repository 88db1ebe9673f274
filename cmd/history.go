package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/likesync/internal/formatter"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/urfave/cli/v3"
)

// HistoryRuns lists recorded sync and backup runs, newest first.
func (r *Runner) HistoryRuns(ctx context.Context, cmd *cli.Command) error {
	syncLog, closeLog, err := r.syncLog()
	if err != nil {
		return err
	}
	defer closeLog()

	runs, err := syncLog.ListRuns(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.ToRunsJSON(runs)
		if err != nil {
			return fmt.Errorf("failed to marshal runs: %w", err)
		}
		return r.writePlain("%s\n", data)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}

	r.writePlainHeader("Runs")
	return r.writePlain("%s", formatter.ExportRunsText(runs))
}

// HistoryLog prints the added and removed tracks of one run, or of every run with --all.
func (r *Runner) HistoryLog(ctx context.Context, cmd *cli.Command) error {
	syncLog, closeLog, err := r.syncLog()
	if err != nil {
		return err
	}
	defer closeLog()

	var (
		run     *models.SyncRun
		entries []models.TrackLogEntry
	)

	switch {
	case cmd.String("track") != "":
		entries, err = syncLog.TrackHistory(ctx, cmd.String("track"))
	case cmd.Bool("all"):
		entries, err = syncLog.ListLog(ctx, "")
	default:
		if run, err = syncLog.GetRun(ctx, cmd.String("run")); err != nil {
			return err
		}
		entries, err = syncLog.ListLog(ctx, run.ID)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if run != nil {
		r.writePlainHeader(fmt.Sprintf("Run #%d (%s, %s)", run.Sequence, run.Mode, run.Status))
	}
	if len(entries) == 0 {
		return r.writePlain("No tracks logged\n")
	}

	for _, e := range entries {
		marker := styles.ok.Render("+")
		if e.Action == models.ActionRemoved {
			marker = styles.err.Render("-")
		}
		r.writePlain("%s %s - %s", marker, e.Track.Artist, e.Track.Name)
		if e.Track.Album != "" {
			r.writePlain(" (%s)", e.Track.Album)
		}
		r.writePlain("  %s\n", e.LoggedAt.Local().Format(time.DateTime))
	}
	return nil
}

// HistoryExport writes the whole track log and the latest library snapshot to CSV files.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	syncLog, closeLog, err := r.syncLog()
	if err != nil {
		return err
	}
	defer closeLog()

	entries, err := syncLog.ListLog(ctx, "")
	if err != nil {
		return err
	}

	snapshot, err := syncLog.Snapshot(ctx)
	if err != nil {
		return err
	}

	result, err := formatter.WriteCSVExport(entries, snapshot, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported sync log", "log", result.LogFile, "library", result.SnapshotFile)
	r.writePlain("%s Track log: %s (%d rows)\n", okMarker(""), result.LogFile, len(entries))
	r.writePlain("%s Library: %s (%d songs)\n", okMarker(""), result.SnapshotFile, len(snapshot))
	return nil
}
