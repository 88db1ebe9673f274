package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
)

func TestReader(t *testing.T) {
	t.Run("reads every page in order", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Library(), tracks("t", 7), 3)

		got, err := NewReader(api, models.Library(), 0).Collect(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if want := ids(tracks("t", 7)); !slices.Equal(ids(got), want) {
			t.Errorf("expected %v, got %v", want, ids(got))
		}
		if api.pageFetches != 3 {
			t.Errorf("expected 3 page fetches, got %d", api.pageFetches)
		}
	})

	t.Run("empty collection", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Playlist("p"), nil, 50)

		got, err := NewReader(api, models.Playlist("p"), 0).Collect(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil collection, got %#v", got)
		}
	})

	t.Run("skips entries without an id", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Playlist("p"), models.Collection{
			track("a", 0),
			{URI: "spotify:local:artist:album:title:120"},
			track("b", 0),
		}, 50)

		got, err := NewReader(api, models.Playlist("p"), 0).Collect(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(ids(got), []string{"a", "b"}) {
			t.Errorf("expected [a b], got %v", ids(got))
		}
	})

	t.Run("second iteration reports consumed", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Library(), tracks("t", 2), 50)

		reader := NewReader(api, models.Library(), 0)
		if _, err := reader.Collect(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := reader.Collect(context.Background())
		if !errors.Is(err, shared.ErrReaderConsumed) {
			t.Errorf("expected ErrReaderConsumed, got %v", err)
		}
		if api.pageFetches != 1 {
			t.Errorf("consumed reader should not fetch again, got %d fetches", api.pageFetches)
		}
	})

	t.Run("page failure ends the sequence", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Library(), tracks("t", 6), 2)
		api.pageErr[models.Library().String()] = shared.ErrAPIRequest
		api.pageErrAt = 1

		var seen []string
		var gotErr error
		for tr, err := range NewReader(api, models.Library(), 0).All(context.Background()) {
			if err != nil {
				gotErr = err
				continue
			}
			seen = append(seen, tr.ID)
		}

		if !errors.Is(gotErr, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", gotErr)
		}
		if !slices.Equal(seen, []string{"t0", "t1"}) {
			t.Errorf("expected first page only, got %v", seen)
		}
	})

	t.Run("stops fetching when the consumer stops", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Library(), tracks("t", 10), 2)

		for tr := range NewReader(api, models.Library(), 0).All(context.Background()) {
			if tr.ID == "t0" {
				break
			}
		}

		if api.pageFetches != 1 {
			t.Errorf("expected 1 page fetch, got %d", api.pageFetches)
		}
	})

	t.Run("waits between items", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Library(), tracks("t", 4), 2)

		start := time.Now()
		got, err := NewReader(api, models.Library(), 20*time.Millisecond).Collect(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
			t.Errorf("expected at least 3 intervals between 4 items, took %v", elapsed)
		}
		if len(got) != 4 {
			t.Errorf("expected 4 tracks, got %d", len(got))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		api := newMockAPI()
		api.setCollection(models.Library(), tracks("t", 3), 50)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewReader(api, models.Library(), 0).Collect(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
