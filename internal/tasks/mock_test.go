package tasks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/likesync/internal/models"
)

// mockCall is one mutation received by mockPlaylistAPI.
type mockCall struct {
	op         string
	playlistID string
	uris       []string
	position   int
}

// mockPlaylistAPI serves fixed pages per scope and records mutations.
type mockPlaylistAPI struct {
	mu sync.Mutex

	pages     map[string][]*models.Page // keyed by scope.String()
	pageErr   map[string]error          // returned when fetching the page at pageErrAt
	pageErrAt int

	calls  []mockCall
	failAt int // 1-based mutation call that fails; 0 never
	err    error

	pageFetches int
}

func newMockAPI() *mockPlaylistAPI {
	return &mockPlaylistAPI{
		pages:   make(map[string][]*models.Page),
		pageErr: make(map[string]error),
	}
}

// setCollection splits tracks into pages of pageSize for scope.
func (m *mockPlaylistAPI) setCollection(scope models.Scope, tracks models.Collection, pageSize int) {
	var pages []*models.Page
	for start := 0; start < len(tracks) || start == 0; start += pageSize {
		end := min(start+pageSize, len(tracks))
		pages = append(pages, &models.Page{Scope: scope, Items: tracks[start:end]})
		if end >= len(tracks) {
			break
		}
	}
	for i := range pages[:len(pages)-1] {
		pages[i].Next = strconv.Itoa(i + 1)
	}
	m.pages[scope.String()] = pages
}

func (m *mockPlaylistAPI) page(scope models.Scope, index int) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageFetches++
	if err, ok := m.pageErr[scope.String()]; ok && index == m.pageErrAt {
		return nil, err
	}

	pages := m.pages[scope.String()]
	if index >= len(pages) {
		return nil, fmt.Errorf("no page %d for %s", index, scope)
	}
	return pages[index], nil
}

func (m *mockPlaylistAPI) FirstPage(ctx context.Context, scope models.Scope) (*models.Page, error) {
	return m.page(scope, 0)
}

func (m *mockPlaylistAPI) NextPage(ctx context.Context, page *models.Page) (*models.Page, error) {
	if page.Next == "" {
		return nil, nil
	}
	index, err := strconv.Atoi(page.Next)
	if err != nil {
		return nil, err
	}
	return m.page(page.Scope, index)
}

func (m *mockPlaylistAPI) record(call mockCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)
	if m.failAt > 0 && len(m.calls) == m.failAt {
		return m.err
	}
	return nil
}

func (m *mockPlaylistAPI) InsertAt(ctx context.Context, playlistID, uri string, position int) error {
	return m.record(mockCall{op: "insert", playlistID: playlistID, uris: []string{uri}, position: position})
}

func (m *mockPlaylistAPI) RemoveMany(ctx context.Context, playlistID string, uris []string) error {
	return m.record(mockCall{op: "remove", playlistID: playlistID, uris: append([]string(nil), uris...)})
}

func (m *mockPlaylistAPI) AddMany(ctx context.Context, playlistID string, uris []string) error {
	return m.record(mockCall{op: "add", playlistID: playlistID, uris: append([]string(nil), uris...)})
}

func (m *mockPlaylistAPI) callsOf(op string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []mockCall
	for _, c := range m.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// mockSyncLogger records what the engine asked it to persist.
type mockSyncLogger struct {
	runs    []models.SyncRun
	diffs   []models.DiffResult
	library []models.Collection
	err     error
}

func (m *mockSyncLogger) Record(ctx context.Context, run *models.SyncRun, diff models.DiffResult, library models.Collection) error {
	m.runs = append(m.runs, *run)
	m.diffs = append(m.diffs, diff)
	m.library = append(m.library, library)
	return m.err
}

// track builds a test track; addedAt is an offset in seconds from a fixed epoch, 0 leaves it unset.
func track(id string, addedAt int) models.Track {
	t := models.Track{ID: id, URI: "spotify:track:" + id, Name: "Song " + id, Artist: "Artist " + id}
	if addedAt > 0 {
		t.AddedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(addedAt) * time.Second)
	}
	return t
}

// tracks builds n tracks with ids prefix0..prefixN-1.
func tracks(prefix string, n int) models.Collection {
	c := make(models.Collection, n)
	for i := range n {
		c[i] = track(fmt.Sprintf("%s%d", prefix, i), i+1)
	}
	return c
}

func ids(c []models.Track) []string {
	out := make([]string, len(c))
	for i, t := range c {
		out[i] = t.ID
	}
	return out
}
