// Package search provides full-text search over the album library using Bleve.
// It supports fuzzy matching on artist and title, keyword filtering on pipeline
// status and genres, and numeric range queries on year.
package search

import (
	"github.com/musictaggerz/tagger-server/internal/domain"
)

// AlbumDocument is the document structure for the Bleve index.
//
// Genres and label are denormalized from the matched release so tagged albums
// become searchable by catalog metadata, not just by folder-derived names.
type AlbumDocument struct {
	ID     string `json:"id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Label  string `json:"label,omitempty"`
	Path   string `json:"path"`

	// Keyword fields for exact filtering
	Status string   `json:"status"`
	Genres []string `json:"genres,omitempty"`
	Format string   `json:"format,omitempty"` // dominant track format, e.g. "flac"

	// Numeric fields for range queries and sorting
	Year       int     `json:"year,omitempty"`
	TrackCount int     `json:"track_count"`
	Confidence float64 `json:"confidence,omitempty"`

	// Timestamps for sorting
	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *AlbumDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":          d.ID,
		"artist":      d.Artist,
		"title":       d.Title,
		"path":        d.Path,
		"status":      d.Status,
		"track_count": d.TrackCount,
		"created_at":  d.CreatedAt,
		"updated_at":  d.UpdatedAt,
	}

	// Optional fields - only add if non-empty
	if d.Label != "" {
		m["label"] = d.Label
	}
	if len(d.Genres) > 0 {
		m["genres"] = d.Genres
	}
	if d.Format != "" {
		m["format"] = d.Format
	}
	if d.Year > 0 {
		m["year"] = d.Year
	}
	if d.Confidence > 0 {
		m["confidence"] = d.Confidence
	}

	return m
}

// AlbumToDocument converts a domain Album to an AlbumDocument.
func AlbumToDocument(album *domain.Album) *AlbumDocument {
	doc := &AlbumDocument{
		ID:         album.ID,
		Artist:     album.Artist,
		Title:      album.Title,
		Label:      album.Label,
		Path:       album.Path,
		Status:     string(album.Status),
		Genres:     album.Genres,
		Year:       album.Year,
		TrackCount: album.TrackCount,
		Confidence: album.MatchConfidence,
		CreatedAt:  album.CreatedAt.UnixMilli(),
		UpdatedAt:  album.UpdatedAt.UnixMilli(),
	}

	if len(album.Tracks) > 0 {
		doc.Format = album.Tracks[0].Format
	}

	return doc
}
