package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/likesync/internal/models"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, sequence, mode, playlist_id, status, library_count, playlist_count,
	added_count, removed_count, error_message, started_at, completed_at`

// SyncLogRepository persists runs, their track log and the library snapshot.
type SyncLogRepository struct {
	db *sql.DB
}

// NewSyncLogRepository creates a new SyncLogRepository with the given database connection
func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Record stores run with a fresh sequence number, one log row per added and removed track and,
// when library is not nil, replaces the snapshot with it. An empty library clears the snapshot.
func (r *SyncLogRepository) Record(ctx context.Context, run *models.SyncRun, diff models.DiffResult, library models.Collection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	var errorMessage any = run.Error
	if run.Error == "" {
		errorMessage = nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		sequence,
		run.Mode,
		run.PlaylistID,
		run.Status,
		run.LibraryCount,
		run.PlaylistCount,
		run.AddedCount,
		run.RemovedCount,
		errorMessage,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	loggedAt := time.Now()
	if run.CompletedAt != nil {
		loggedAt = *run.CompletedAt
	}

	if err := r.insertLog(ctx, tx, run.ID, models.ActionAdded, diff.Added, loggedAt); err != nil {
		return err
	}
	if err := r.insertLog(ctx, tx, run.ID, models.ActionRemoved, diff.Removed, loggedAt); err != nil {
		return err
	}

	if library != nil {
		if err := r.replaceSnapshot(ctx, tx, run.ID, library); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	run.Sequence = sequence
	return nil
}

func (r *SyncLogRepository) insertLog(ctx context.Context, tx *sql.Tx, runID string, action models.LogAction, tracks []models.Track, loggedAt time.Time) error {
	if len(tracks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_log (run_id, action, track_id, uri, name, artist, album, image_url, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.ExecContext(ctx, runID, action, t.ID, t.URI, t.Name, t.Artist, t.Album, t.ImageURL, loggedAt); err != nil {
			return fmt.Errorf("failed to log %s track %s: %w", action, t.ID, err)
		}
	}
	return nil
}

func (r *SyncLogRepository) replaceSnapshot(ctx context.Context, tx *sql.Tx, runID string, library models.Collection) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM library_snapshot"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO library_snapshot (position, run_id, track_id, uri, name, artist, album, image_url, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range library {
		var addedAt any
		if !t.AddedAt.IsZero() {
			addedAt = t.AddedAt
		}
		if _, err := stmt.ExecContext(ctx, i, runID, t.ID, t.URI, t.Name, t.Artist, t.Album, t.ImageURL, addedAt); err != nil {
			return fmt.Errorf("failed to write snapshot row %d: %w", i, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less returns every run.
func (r *SyncLogRepository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	query := "SELECT " + runColumns + " FROM sync_runs ORDER BY sequence DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// GetRun finds a run by sequence number, by id, or the most recent one for "latest".
func (r *SyncLogRepository) GetRun(ctx context.Context, ref string) (*models.SyncRun, error) {
	var row *sql.Row
	if ref == "latest" {
		row = r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM sync_runs ORDER BY sequence DESC LIMIT 1")
	} else if sequence, err := strconv.Atoi(ref); err == nil {
		row = r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM sync_runs WHERE sequence = ?", sequence)
	} else {
		row = r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM sync_runs WHERE id = ?", ref)
	}

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	}
	return run, err
}

// ListLog returns the log entries of one run, or of every run when runID is empty, in insertion order.
func (r *SyncLogRepository) ListLog(ctx context.Context, runID string) ([]models.TrackLogEntry, error) {
	query := `
		SELECT id, run_id, action, track_id, uri, name, artist, album, image_url, logged_at
		FROM track_log
	`
	args := []any{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY id ASC"

	return r.queryLog(ctx, query, args...)
}

// TrackHistory returns every log entry for one track, oldest first.
func (r *SyncLogRepository) TrackHistory(ctx context.Context, trackID string) ([]models.TrackLogEntry, error) {
	return r.queryLog(ctx, `
		SELECT id, run_id, action, track_id, uri, name, artist, album, image_url, logged_at
		FROM track_log
		WHERE track_id = ?
		ORDER BY id ASC
	`, trackID)
}

func (r *SyncLogRepository) queryLog(ctx context.Context, query string, args ...any) ([]models.TrackLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query track log: %w", err)
	}
	defer rows.Close()

	var entries []models.TrackLogEntry
	for rows.Next() {
		var e models.TrackLogEntry
		err := rows.Scan(&e.ID, &e.RunID, &e.Action, &e.Track.ID, &e.Track.URI, &e.Track.Name,
			&e.Track.Artist, &e.Track.Album, &e.Track.ImageURL, &e.LoggedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Snapshot returns the library as of the last successful sync, in library order.
func (r *SyncLogRepository) Snapshot(ctx context.Context) ([]models.SnapshotEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, run_id, track_id, uri, name, artist, album, image_url, added_at
		FROM library_snapshot
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var entries []models.SnapshotEntry
	for rows.Next() {
		var (
			e       models.SnapshotEntry
			addedAt sql.NullTime
		)
		err := rows.Scan(&e.Position, &e.RunID, &e.Track.ID, &e.Track.URI, &e.Track.Name,
			&e.Track.Artist, &e.Track.Album, &e.Track.ImageURL, &addedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if addedAt.Valid {
			e.Track.AddedAt = addedAt.Time
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a [models.SyncRun]
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		run          models.SyncRun
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(&run.ID, &run.Sequence, &run.Mode, &run.PlaylistID, &run.Status,
		&run.LibraryCount, &run.PlaylistCount, &run.AddedCount, &run.RemovedCount,
		&errorMessage, &run.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Error = errorMessage.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}
