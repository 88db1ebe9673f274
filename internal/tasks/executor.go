package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
	"golang.org/x/time/rate"
)

// BatchCeiling is the most tracks one remove or append call carries.
const BatchCeiling = 100

// MutationAPI changes the contents of a playlist.
type MutationAPI interface {
	InsertAt(ctx context.Context, playlistID, uri string, position int) error
	RemoveMany(ctx context.Context, playlistID string, uris []string) error
	AddMany(ctx context.Context, playlistID string, uris []string) error
}

// ExecutorOpts contains configuration for applying playlist mutations.
type ExecutorOpts struct {
	InsertDelay time.Duration         // Minimum interval between insert and append calls (zero: none)
	BatchSize   int                   // Tracks per remove/append call (default and maximum: BatchCeiling)
	Logger      *log.Logger           // Default: log.Default()
	Progress    chan<- ProgressUpdate // Optional, non-blocking
}

// Executor applies a [models.DiffResult] to a playlist, one call at a time.
type Executor struct {
	api      MutationAPI
	limiter  *rate.Limiter
	batch    int
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

// NewExecutor creates an executor over api.
func NewExecutor(api MutationAPI, opts ExecutorOpts) *Executor {
	if opts.BatchSize <= 0 || opts.BatchSize > BatchCeiling {
		opts.BatchSize = BatchCeiling
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Executor{
		api:      api,
		limiter:  newLimiter(opts.InsertDelay),
		batch:    opts.BatchSize,
		logger:   opts.Logger,
		progress: opts.Progress,
	}
}

// Apply inserts each added track at the head of the playlist, in order, then removes the removed tracks in batches.
//
// Inserting oldest first at position 0 leaves the most recently liked track on top.
// The first failing call stops the run; if earlier calls succeeded the error is a [*shared.PartialApplicationError].
func (e *Executor) Apply(ctx context.Context, playlistID string, added, removed []models.Track) error {
	chunks := chunk(models.Collection(removed).URIs(), e.batch)
	total := len(added) + len(chunks)
	completed := 0

	for i, track := range added {
		if err := wait(ctx, e.limiter); err != nil {
			return partial("insert", completed, total, err)
		}
		if err := e.api.InsertAt(ctx, playlistID, track.URI, 0); err != nil {
			return partial("insert", completed, total, fmt.Errorf("failed to insert %s: %w", track.ID, err))
		}
		completed++

		e.logger.Debug("inserted track", "id", track.ID, "name", track.Name)
		sendProgress(e.progress, insertTrackUpdate(i+1, len(added), track))
	}

	for i, uris := range chunks {
		if err := e.api.RemoveMany(ctx, playlistID, uris); err != nil {
			return partial("remove", completed, total, fmt.Errorf("failed to remove batch %d/%d: %w", i+1, len(chunks), err))
		}
		completed++

		e.logger.Debug("removed batch", "batch", i+1, "tracks", len(uris))
		sendProgress(e.progress, removeBatchUpdate(i+1, len(chunks), len(uris)))
	}

	return nil
}

// Append adds tracks to the end of the playlist in batches, keeping their order.
func (e *Executor) Append(ctx context.Context, playlistID string, tracks []models.Track) error {
	chunks := chunk(models.Collection(tracks).URIs(), e.batch)

	for i, uris := range chunks {
		if err := wait(ctx, e.limiter); err != nil {
			return partial("append", i, len(chunks), err)
		}
		if err := e.api.AddMany(ctx, playlistID, uris); err != nil {
			return partial("append", i, len(chunks), fmt.Errorf("failed to append batch %d/%d: %w", i+1, len(chunks), err))
		}

		e.logger.Debug("appended batch", "batch", i+1, "tracks", len(uris))
		sendProgress(e.progress, appendBatchUpdate(i+1, len(chunks), len(uris)))
	}
	return nil
}

func partial(op string, completed, total int, err error) error {
	if completed == 0 {
		return err
	}
	return &shared.PartialApplicationError{Op: op, Completed: completed, Total: total, Err: err}
}

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
