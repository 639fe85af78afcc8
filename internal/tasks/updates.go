package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a discovery run.
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
	ResolveSeeds Phase = iota
	Expand
	SampleTracks
	FetchFeatures
	Rank
	CreatePlaylist
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case ResolveSeeds:
		return "resolve_seeds"
	case Expand:
		return "expand"
	case SampleTracks:
		return "sample_tracks"
	case FetchFeatures:
		return "fetch_features"
	case Rank:
		return "rank"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

func resolveSeedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveSeeds,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving artist %s...", step, total, name),
	}
}

func expandUpdate(step, total int, artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Expand,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching related artists for %s...", step, total, artistID),
	}
}

func expandedUpdate(candidates int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Expand,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d candidate artists", candidates),
		Data:    candidates,
	}
}

func sampleTracksUpdate(step, total int, artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SampleTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching top tracks for %s...", step, total, artistID),
	}
}

func fetchFeaturesUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features for %d tracks...", step, total, size),
	}
}

func rankUpdate(rows, candidates int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Rank,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Ranking %d candidate tracks against %d rows...", candidates, rows),
	}
}

func createPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", name, id),
		Data:    id,
	}
}

func addTracksUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, size),
	}
}
