package domain

import "fmt"

// AlbumStatus represents where an album sits in the tagging pipeline.
type AlbumStatus string

const (
	// StatusPending means the album is discovered but not yet processed,
	// or has been reset for another attempt.
	StatusPending AlbumStatus = "pending"

	// StatusMatching means the album is being processed right now.
	StatusMatching AlbumStatus = "matching"

	// StatusTagged means a release matched with high confidence and the
	// files were written. Terminal unless a retag is requested.
	StatusTagged AlbumStatus = "tagged"

	// StatusNeedsReview means a plausible but uncertain match was found.
	// The album waits for a human decision and is never retried automatically.
	StatusNeedsReview AlbumStatus = "needs_review"

	// StatusFailed means processing errored or no acceptable match exists
	// after all attempts.
	StatusFailed AlbumStatus = "failed"

	// StatusSkipped means a human excluded the album from tagging.
	StatusSkipped AlbumStatus = "skipped"
)

// Valid reports whether s is a known status.
func (s AlbumStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMatching, StatusTagged, StatusNeedsReview, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether the pipeline is done with the album until a
// human acts on it.
func (s AlbumStatus) Terminal() bool {
	switch s {
	case StatusTagged, StatusNeedsReview, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// transitions lists the permitted moves between statuses.
// Every entry out of a terminal status corresponds to a manual action.
var transitions = map[AlbumStatus][]AlbumStatus{
	StatusPending:     {StatusMatching, StatusSkipped},
	StatusMatching:    {StatusTagged, StatusNeedsReview, StatusFailed, StatusSkipped, StatusPending},
	StatusTagged:      {StatusPending, StatusSkipped},
	StatusNeedsReview: {StatusPending, StatusSkipped},
	StatusFailed:      {StatusPending, StatusSkipped},
	StatusSkipped:     {StatusPending},
}

// CanTransition reports whether moving from s to next is permitted.
func (s AlbumStatus) CanTransition(next AlbumStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a status change is not permitted.
type ErrInvalidTransition struct {
	From AlbumStatus
	To   AlbumStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
