package tasks

import (
	"fmt"

	"github.com/desertthunder/likesync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchLibrary Phase = iota
	FetchPlaylist
	Compare
	InsertTracks
	RemoveTracks
	AppendTracks
	RecordLog
)

func (p Phase) String() string {
	switch p {
	case FetchLibrary:
		return "fetch_library"
	case FetchPlaylist:
		return "fetch_playlist"
	case Compare:
		return "compare"
	case InsertTracks:
		return "insert_tracks"
	case RemoveTracks:
		return "remove_tracks"
	case AppendTracks:
		return "append_tracks"
	case RecordLog:
		return "record_log"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchedUpdate(scope models.Scope, count int) ProgressUpdate {
	phase := FetchLibrary
	if scope.Kind == models.PlaylistScope {
		phase = FetchPlaylist
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %s (%d songs)", scope, count),
		Data:    count,
	}
}

func compareUpdate(diff models.DiffResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d added, %d removed", len(diff.Added), len(diff.Removed)),
		Data:    diff,
	}
}

func insertTrackUpdate(step, total int, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   InsertTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.Artist, tr.Name),
	}
}

func removeBatchUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] removed %d songs", step, total, size),
	}
}

func appendBatchUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AppendTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] appended %d songs", step, total, size),
	}
}

func recordUpdate(run *models.SyncRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordLog,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recorded run #%d", run.Sequence),
		Data:    run,
	}
}
