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

func TestExecutorApply(t *testing.T) {
	t.Run("inserts at head in order then removes", func(t *testing.T) {
		api := newMockAPI()
		executor := NewExecutor(api, ExecutorOpts{})

		added := []models.Track{track("old", 1), track("new", 2)}
		removed := []models.Track{track("gone", 0)}

		if err := executor.Apply(context.Background(), "p1", added, removed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(api.calls) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(api.calls))
		}

		for i, want := range []string{"spotify:track:old", "spotify:track:new"} {
			call := api.calls[i]
			if call.op != "insert" || call.position != 0 || call.uris[0] != want || call.playlistID != "p1" {
				t.Errorf("call %d: unexpected %+v", i, call)
			}
		}
		if api.calls[2].op != "remove" {
			t.Errorf("expected removal last, got %s", api.calls[2].op)
		}
	})

	t.Run("removal chunking", func(t *testing.T) {
		tc := []struct {
			name      string
			removed   int
			batchSize int
			wantCalls []int
		}{
			{name: "150 removed", removed: 150, wantCalls: []int{100, 50}},
			{name: "exactly 100", removed: 100, wantCalls: []int{100}},
			{name: "201 removed", removed: 201, wantCalls: []int{100, 100, 1}},
			{name: "nothing removed", removed: 0},
			{name: "smaller batch", removed: 5, batchSize: 2, wantCalls: []int{2, 2, 1}},
			{name: "batch above ceiling is capped", removed: 120, batchSize: 500, wantCalls: []int{100, 20}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				api := newMockAPI()
				executor := NewExecutor(api, ExecutorOpts{BatchSize: tt.batchSize})
				removed := tracks("r", tt.removed)

				if err := executor.Apply(context.Background(), "p1", nil, removed); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				calls := api.callsOf("remove")
				var sizes []int
				seen := make(map[string]int)
				for _, c := range calls {
					sizes = append(sizes, len(c.uris))
					for _, uri := range c.uris {
						seen[uri]++
					}
				}

				if !slices.Equal(sizes, tt.wantCalls) {
					t.Errorf("expected chunk sizes %v, got %v", tt.wantCalls, sizes)
				}
				if len(seen) != tt.removed {
					t.Errorf("expected %d distinct uris, got %d", tt.removed, len(seen))
				}
				for uri, n := range seen {
					if n != 1 {
						t.Errorf("uri %s removed %d times", uri, n)
					}
				}
			})
		}
	})

	t.Run("first call failure is returned as is", func(t *testing.T) {
		api := newMockAPI()
		api.failAt = 1
		api.err = shared.ErrAPIRequest

		err := NewExecutor(api, ExecutorOpts{}).Apply(context.Background(), "p1", []models.Track{track("a", 1)}, nil)

		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if errors.Is(err, shared.ErrPartialApplication) {
			t.Error("nothing was applied, error should not be partial")
		}
	})

	t.Run("later failure is partial", func(t *testing.T) {
		api := newMockAPI()
		api.failAt = 3
		api.err = shared.ErrAPIRequest

		added := []models.Track{track("a", 1), track("b", 2)}
		err := NewExecutor(api, ExecutorOpts{}).Apply(context.Background(), "p1", added, tracks("r", 150))

		var partialErr *shared.PartialApplicationError
		if !errors.As(err, &partialErr) {
			t.Fatalf("expected PartialApplicationError, got %v", err)
		}
		if partialErr.Op != "remove" || partialErr.Completed != 2 || partialErr.Total != 4 {
			t.Errorf("unexpected partial error %+v", partialErr)
		}
		if !errors.Is(err, shared.ErrPartialApplication) || !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected both sentinels to match, got %v", err)
		}
		if len(api.calls) != 3 {
			t.Errorf("expected execution to stop after failure, got %d calls", len(api.calls))
		}
	})

	t.Run("waits between inserts", func(t *testing.T) {
		api := newMockAPI()
		executor := NewExecutor(api, ExecutorOpts{InsertDelay: 20 * time.Millisecond})

		start := time.Now()
		if err := executor.Apply(context.Background(), "p1", tracks("a", 3), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
			t.Errorf("expected at least two insert intervals, took %v", elapsed)
		}
	})

	t.Run("cancelled context stops before the next call", func(t *testing.T) {
		api := newMockAPI()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewExecutor(api, ExecutorOpts{}).Apply(ctx, "p1", tracks("a", 2), nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(api.calls) != 0 {
			t.Errorf("expected no calls, got %d", len(api.calls))
		}
	})

	t.Run("reports progress", func(t *testing.T) {
		api := newMockAPI()
		progress := make(chan ProgressUpdate, 10)

		executor := NewExecutor(api, ExecutorOpts{Progress: progress})
		if err := executor.Apply(context.Background(), "p1", tracks("a", 2), tracks("r", 1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		if !slices.Equal(phases, []Phase{InsertTracks, InsertTracks, RemoveTracks}) {
			t.Errorf("unexpected phases %v", phases)
		}
	})
}

func TestExecutorAppend(t *testing.T) {
	t.Run("appends in order in batches", func(t *testing.T) {
		api := newMockAPI()
		source := tracks("s", 130)

		if err := NewExecutor(api, ExecutorOpts{}).Append(context.Background(), "backup", source); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		calls := api.callsOf("add")
		if len(calls) != 2 || len(calls[0].uris) != 100 || len(calls[1].uris) != 30 {
			t.Fatalf("unexpected calls %d", len(calls))
		}

		var got []string
		for _, c := range calls {
			got = append(got, c.uris...)
		}
		if !slices.Equal(got, models.Collection(source).URIs()) {
			t.Error("append should preserve source order")
		}
	})

	t.Run("failure after first batch is partial", func(t *testing.T) {
		api := newMockAPI()
		api.failAt = 2
		api.err = shared.ErrAPIRequest

		err := NewExecutor(api, ExecutorOpts{}).Append(context.Background(), "backup", tracks("s", 150))

		var partialErr *shared.PartialApplicationError
		if !errors.As(err, &partialErr) || partialErr.Op != "append" || partialErr.Completed != 1 {
			t.Errorf("expected partial append error, got %v", err)
		}
	})

	t.Run("nothing to append", func(t *testing.T) {
		api := newMockAPI()
		if err := NewExecutor(api, ExecutorOpts{}).Append(context.Background(), "backup", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(api.calls) != 0 {
			t.Errorf("expected no calls, got %d", len(api.calls))
		}
	})
}

func TestChunk(t *testing.T) {
	got := chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || !slices.Equal(got[2], []int{5}) {
		t.Errorf("unexpected chunks %v", got)
	}
	if chunk([]int(nil), 2) != nil {
		t.Error("expected nil for empty input")
	}
}
