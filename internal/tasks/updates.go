package tasks

import (
	"fmt"

	"github.com/desertthunder/catalogx/internal/models"
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
	LoadSource Phase = iota
	MatchEntities
	WriteBatch
	SyncPlaylist
	Complete
)

func (p Phase) String() string {
	switch p {
	case LoadSource:
		return "load_source"
	case MatchEntities:
		return "match"
	case WriteBatch:
		return "write_batch"
	case SyncPlaylist:
		return "sync_playlist"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func loadSourceUpdate(kind models.Kind) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading source catalog for %s...", kind),
	}
}

func matchUpdate(step, total int, t models.Track, m models.MatchResult) ProgressUpdate {
	status := "skipped"
	if m.Found() {
		status = "found"
	}
	return ProgressUpdate{
		Phase:   MatchEntities,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s (%s)", step, total, t.Artist, t.Album, status),
		Data:    m,
	}
}

func writeUpdate(kind models.Kind, flushes, written int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteBatch,
		Step:    flushes,
		Total:   0,
		Message: fmt.Sprintf("Flushed %s batch %d (%d written)", kind, flushes, written),
	}
}

func syncPlaylistUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%d tracks)", step, total, pl.Name, len(pl.Tracks)),
	}
}

func completeUpdate(result *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    result.Total,
		Total:   result.Total,
		Message: fmt.Sprintf("%s: %d found, %d skipped, %d written", result.Kind, result.Found, result.Skipped, result.Written),
		Data:    result,
	}
}
