package tasks

import "fmt"

// Phase identifies where in the pipeline a progress update originated.
type Phase int

const (
	PhaseResolve Phase = iota
	PhaseMaterialize
	PhaseUpload
	PhaseCommit
	PhaseSkip
	PhaseFailed
	PhaseAlbumDone
	PhaseRunDone
)

// String returns a human-readable name for the phase
func (p Phase) String() string {
	switch p {
	case PhaseResolve:
		return "resolve"
	case PhaseMaterialize:
		return "materialize"
	case PhaseUpload:
		return "upload"
	case PhaseCommit:
		return "commit"
	case PhaseSkip:
		return "skip"
	case PhaseFailed:
		return "failed"
	case PhaseAlbumDone:
		return "album done"
	case PhaseRunDone:
		return "run done"
	default:
		return "unknown"
	}
}

// ProgressUpdate reports pipeline progress for a run.
type ProgressUpdate struct {
	Phase     Phase
	Album     string
	AssetUUID string
	Filename  string
	Index     int // 1-based position within the album's pending assets
	Total     int // pending assets in the album
	Message   string
	Err       error
}

func resolveUpdate(album, message string) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseResolve, Album: album, Message: message}
}

func assetUpdate(phase Phase, album string, asset assetPosition) ProgressUpdate {
	return ProgressUpdate{
		Phase:     phase,
		Album:     album,
		AssetUUID: asset.record.UUID,
		Filename:  asset.record.Filename,
		Index:     asset.index,
		Total:     asset.total,
	}
}

func failureUpdate(album string, asset assetPosition, err error) ProgressUpdate {
	update := assetUpdate(PhaseFailed, album, asset)
	update.Err = err
	update.Message = err.Error()
	return update
}

func albumDoneUpdate(result AlbumResult) ProgressUpdate {
	return ProgressUpdate{
		Phase: PhaseAlbumDone,
		Album: result.Title,
		Message: fmt.Sprintf("%d committed, %d skipped, %d failed",
			result.Committed, result.Skipped, result.Failed),
	}
}

func runDoneUpdate(result *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase: PhaseRunDone,
		Message: fmt.Sprintf("%d albums: %d committed, %d skipped, %d failed",
			len(result.Albums), result.Committed, result.Skipped, result.Failed),
	}
}
