package domain

import "time"

// ActivityType represents the type of pipeline activity.
type ActivityType string

const (
	// ActivityScanned is recorded when a new album folder is discovered.
	ActivityScanned ActivityType = "scanned"

	// ActivityQueued is recorded when an album enters the tagging queue.
	ActivityQueued ActivityType = "queued"

	// ActivityTagged is recorded when an album is tagged automatically or
	// after a reviewer picked a release.
	ActivityTagged ActivityType = "tagged"

	// ActivityNeedsReview is recorded when the best match was too uncertain
	// to apply without a human decision.
	ActivityNeedsReview ActivityType = "needs_review"

	// ActivityMatchFailed is recorded when no acceptable match was found or
	// processing errored out of retries.
	ActivityMatchFailed ActivityType = "match_failed"

	// ActivitySkipped is recorded when a human excluded an album.
	ActivitySkipped ActivityType = "skipped"
)

// Activity represents one entry in the pipeline activity feed.
// Activities are immutable once created. Album info is denormalized for
// fast feed rendering without extra lookups.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`

	AlbumID    string  `json:"album_id"`
	AlbumTitle string  `json:"album_title"`
	Artist     string  `json:"artist,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
}
