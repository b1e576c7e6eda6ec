package domain

import "time"

// MatchCandidate is one scored release considered for an album.
// Candidates are kept so a reviewer can pick a different release later.
type MatchCandidate struct {
	ID           string    `json:"id"`
	AlbumID      string    `json:"album_id"`
	ReleaseID    string    `json:"release_id"`
	Confidence   float64   `json:"confidence"`
	Artist       string    `json:"artist"`
	Title        string    `json:"title"`
	Year         int       `json:"year,omitempty"`
	OriginalYear int       `json:"original_year,omitempty"`
	TrackCount   int       `json:"track_count"`
	Country      string    `json:"country,omitempty"`
	Media        string    `json:"media,omitempty"`
	Label        string    `json:"label,omitempty"`
	Barcode      string    `json:"barcode,omitempty"`
	IsSelected   bool      `json:"is_selected"`
	CreatedAt    time.Time `json:"created_at"`
}
