package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
)

// PlaylistAPI reads and mutates collections.
type PlaylistAPI interface {
	CollectionAPI
	MutationAPI
}

// SyncLogger persists the outcome of a run.
type SyncLogger interface {
	// Record stores run, its added and removed tracks and, when library is not nil, the library snapshot.
	Record(ctx context.Context, run *models.SyncRun, diff models.DiffResult, library models.Collection) error
}

// SyncOpts contains configuration for a liked songs synchronization.
type SyncOpts struct {
	PlaylistID  string        // Playlist mirrored from the library
	PageDelay   time.Duration // Minimum interval between read items
	InsertDelay time.Duration // Minimum interval between insert calls
	BatchSize   int           // Tracks per remove call (default: 100)
}

// BackupOpts contains configuration for copying a generated playlist into a backup playlist.
type BackupOpts struct {
	Mode        string // Recorded as the run mode, e.g. "discover-weekly"
	SourceID    string
	TargetID    string
	PageDelay   time.Duration
	InsertDelay time.Duration
	BatchSize   int
}

// SyncResult contains all data from a synchronization.
type SyncResult struct {
	Run      *models.SyncRun
	Library  models.Collection
	Playlist models.Collection
	Diff     models.DiffResult
}

// BackupResult contains all data from a backup.
type BackupResult struct {
	Run    *models.SyncRun
	Tracks models.Collection
}

// SyncEngine defines the operations the CLI runs.
type SyncEngine interface {
	// Sync makes the playlist mirror the liked songs library.
	Sync(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOpts) (*SyncResult, error)

	// Backup appends every track of a source playlist to a target playlist.
	Backup(ctx context.Context, progress chan<- ProgressUpdate, opts BackupOpts) (*BackupResult, error)
}

// PlaylistEngine implements SyncEngine.
type PlaylistEngine struct {
	api    PlaylistAPI
	store  SyncLogger
	logger *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine. store may be nil to skip the sync log.
func NewPlaylistEngine(api PlaylistAPI, store SyncLogger, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &PlaylistEngine{api: api, store: store, logger: logger}
}

// Sync reads the library and the playlist concurrently, then applies their difference to the playlist.
func (e *PlaylistEngine) Sync(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOpts) (*SyncResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: playlist API not initialized", shared.ErrServiceUnavailable)
	}
	if opts.PlaylistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	run := newRun(string(shared.ModeSync), opts.PlaylistID)
	logger := shared.WithLogger(e.logger, "run", run.ID)
	result := &SyncResult{Run: run}

	var wg sync.WaitGroup
	var libraryErr, playlistErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Library, libraryErr = e.read(ctx, progress, models.Library(), opts.PageDelay)
	}()
	go func() {
		defer wg.Done()
		result.Playlist, playlistErr = e.read(ctx, progress, models.Playlist(opts.PlaylistID), opts.PageDelay)
	}()
	wg.Wait()

	if err := errors.Join(libraryErr, playlistErr); err != nil {
		return result, e.fail(ctx, run, err)
	}

	run.LibraryCount = len(result.Library)
	run.PlaylistCount = len(result.Playlist)

	result.Diff = Diff(result.Library, result.Playlist)
	sendProgress(progress, compareUpdate(result.Diff))
	logger.Info("computed diff", "library", run.LibraryCount, "playlist", run.PlaylistCount,
		"added", len(result.Diff.Added), "removed", len(result.Diff.Removed))

	executor := NewExecutor(e.api, ExecutorOpts{
		InsertDelay: opts.InsertDelay,
		BatchSize:   opts.BatchSize,
		Logger:      logger,
		Progress:    progress,
	})
	if err := executor.Apply(ctx, opts.PlaylistID, result.Diff.Added, result.Diff.Removed); err != nil {
		return result, e.fail(ctx, run, err)
	}

	run.Complete(result.Diff)
	library := result.Library
	if library == nil {
		library = models.Collection{}
	}
	if err := e.record(ctx, progress, run, result.Diff, library); err != nil {
		return result, err
	}
	return result, nil
}

// Backup reads the source playlist and appends all of its tracks to the target in order.
func (e *PlaylistEngine) Backup(ctx context.Context, progress chan<- ProgressUpdate, opts BackupOpts) (*BackupResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: playlist API not initialized", shared.ErrServiceUnavailable)
	}
	if opts.SourceID == "" || opts.TargetID == "" {
		return nil, fmt.Errorf("%w: source and target playlist ids", shared.ErrMissingArgument)
	}

	run := newRun(opts.Mode, opts.TargetID)
	result := &BackupResult{Run: run}

	tracks, err := e.read(ctx, progress, models.Playlist(opts.SourceID), opts.PageDelay)
	if err != nil {
		return result, e.fail(ctx, run, err)
	}
	result.Tracks = tracks
	run.PlaylistCount = len(tracks)

	executor := NewExecutor(e.api, ExecutorOpts{
		InsertDelay: opts.InsertDelay,
		BatchSize:   opts.BatchSize,
		Logger:      shared.WithLogger(e.logger, "run", run.ID),
		Progress:    progress,
	})
	if err := executor.Append(ctx, opts.TargetID, tracks); err != nil {
		return result, e.fail(ctx, run, err)
	}

	diff := models.DiffResult{Added: tracks}
	run.Complete(diff)
	if err := e.record(ctx, progress, run, diff, nil); err != nil {
		return result, err
	}
	return result, nil
}

func (e *PlaylistEngine) read(ctx context.Context, progress chan<- ProgressUpdate, scope models.Scope, delay time.Duration) (models.Collection, error) {
	tracks, err := NewReader(e.api, scope, delay).Collect(ctx)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, fetchedUpdate(scope, len(tracks)))
	return tracks, nil
}

// fail records run as failed and returns err. A failure to record is logged, not returned.
func (e *PlaylistEngine) fail(ctx context.Context, run *models.SyncRun, err error) error {
	run.Fail(err)
	if e.store != nil {
		if recordErr := e.store.Record(context.WithoutCancel(ctx), run, models.DiffResult{}, nil); recordErr != nil {
			e.logger.Warn("failed to record failed run", "run", run.ID, "error", recordErr)
		}
	}
	return err
}

func (e *PlaylistEngine) record(ctx context.Context, progress chan<- ProgressUpdate, run *models.SyncRun, diff models.DiffResult, library models.Collection) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Record(ctx, run, diff, library); err != nil {
		return fmt.Errorf("playlist updated but failed to record run: %w", err)
	}
	sendProgress(progress, recordUpdate(run))
	return nil
}

func newRun(mode, playlistID string) *models.SyncRun {
	return &models.SyncRun{
		ID:         shared.GenerateID(),
		Mode:       mode,
		PlaylistID: playlistID,
		Status:     models.RunRunning,
		StartedAt:  time.Now(),
	}
}
