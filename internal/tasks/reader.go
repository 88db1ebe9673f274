package tasks

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
	"golang.org/x/time/rate"
)

// CollectionAPI serves a collection one page at a time.
type CollectionAPI interface {
	FirstPage(ctx context.Context, scope models.Scope) (*models.Page, error)
	// NextPage returns nil, nil once page was the last one.
	NextPage(ctx context.Context, page *models.Page) (*models.Page, error)
}

// Reader streams every track of one collection across pages.
//
// A Reader is single use: iterating it a second time yields [shared.ErrReaderConsumed].
type Reader struct {
	api      CollectionAPI
	scope    models.Scope
	limiter  *rate.Limiter
	consumed atomic.Bool
}

// NewReader creates a reader for scope that waits at least delay between yielded tracks. A zero delay disables the wait.
func NewReader(api CollectionAPI, scope models.Scope, delay time.Duration) *Reader {
	return &Reader{
		api:     api,
		scope:   scope,
		limiter: newLimiter(delay),
	}
}

// All returns a lazy sequence of the collection's tracks in remote order.
//
// Entries without a catalog identifier (local files) are skipped. A page fetch failure is yielded once and ends the sequence.
func (r *Reader) All(ctx context.Context) iter.Seq2[models.Track, error] {
	return func(yield func(models.Track, error) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			yield(models.Track{}, fmt.Errorf("%w: %s", shared.ErrReaderConsumed, r.scope))
			return
		}

		page, err := r.api.FirstPage(ctx, r.scope)
		for {
			if err != nil {
				yield(models.Track{}, fmt.Errorf("failed to read %s: %w", r.scope, err))
				return
			}
			if page == nil {
				return
			}

			for _, track := range page.Items {
				if track.ID == "" {
					continue
				}
				if err := wait(ctx, r.limiter); err != nil {
					yield(models.Track{}, err)
					return
				}
				if !yield(track, nil) {
					return
				}
			}

			if page.Next == "" {
				return
			}
			page, err = r.api.NextPage(ctx, page)
		}
	}
}

// Collect drains the reader into a [models.Collection]. An empty scope yields an empty, non-nil collection.
func (r *Reader) Collect(ctx context.Context) (models.Collection, error) {
	tracks := models.Collection{}
	for track, err := range r.All(ctx) {
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// newLimiter allows one event per delay; nil when delay is not positive.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// wait blocks on l, or only checks ctx when l is nil.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return ctx.Err()
	}
	return l.Wait(ctx)
}
