// package formatter exports the sync log to CSV, JSON and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
)

var (
	logHeaders      = []string{"Action", "Image", "Name", "Artist", "Album", "ID", "Link", "Run", "Logged At"}
	snapshotHeaders = []string{"Position", "Image", "Name", "Artist", "Album", "ID", "Link", "Added At"}
)

// ExportLogCSV converts track log entries to CSV with columns: Action, Image, Name, Artist, Album, ID, Link, Run, Logged At
func ExportLogCSV(entries []models.TrackLogEntry) ([]byte, error) {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			e.Action.Label(),
			e.Track.ImageURL,
			e.Track.Name,
			e.Track.Artist,
			e.Track.Album,
			e.Track.ID,
			e.Track.Link(),
			e.RunID,
			formatTime(e.LoggedAt),
		})
	}
	return writeCSV(logHeaders, records)
}

// ExportSnapshotCSV converts the library snapshot to CSV with columns: Position, Image, Name, Artist, Album, ID, Link, Added At
func ExportSnapshotCSV(entries []models.SnapshotEntry) ([]byte, error) {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{
			strconv.Itoa(e.Position + 1),
			e.Track.ImageURL,
			e.Track.Name,
			e.Track.Artist,
			e.Track.Album,
			e.Track.ID,
			e.Track.Link(),
			formatTime(e.Track.AddedAt),
		})
	}
	return writeCSV(snapshotHeaders, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportRunsText renders runs one per line, e.g. "#3 sync completed +2 -1 2024-03-01 12:00:00"
func ExportRunsText(runs []models.SyncRun) []byte {
	var buf bytes.Buffer

	for _, run := range runs {
		fmt.Fprintf(&buf, "#%d %s %s +%d -%d %s", run.Sequence, run.Mode, run.Status,
			run.AddedCount, run.RemovedCount, run.StartedAt.Local().Format(time.DateTime))
		if run.Error != "" {
			fmt.Fprintf(&buf, " (%s)", run.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// ToRunsJSON generates an indented JSON array of runs
func ToRunsJSON(runs []models.SyncRun) ([]byte, error) {
	if runs == nil {
		runs = []models.SyncRun{}
	}
	return shared.MarshalJSON(runs, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	LogFile      string
	SnapshotFile string
}

// WriteCSVExport writes {base}_log.csv and {base}_library.csv.
//
// Defaults to "likesync" as the base filename.
func WriteCSVExport(entries []models.TrackLogEntry, snapshot []models.SnapshotEntry, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "likesync"
	}

	logData, err := ExportLogCSV(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate log CSV: %w", err)
	}

	logFile := baseFilepath + "_log.csv"
	if err := os.WriteFile(logFile, logData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write log file: %w", err)
	}

	snapshotData, err := ExportSnapshotCSV(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate snapshot CSV: %w", err)
	}

	snapshotFile := baseFilepath + "_library.csv"
	if err := os.WriteFile(snapshotFile, snapshotData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write snapshot file: %w", err)
	}

	return &CSVExportResult{LogFile: logFile, SnapshotFile: snapshotFile}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
