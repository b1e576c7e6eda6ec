package domain

import "time"

// BackupActionTag marks a snapshot taken right before the pipeline
// overwrote an album's tags.
const BackupActionTag = "tag"

// TagBackup preserves the tags an album's files carried before a
// destructive write. Restoring a backup puts the snapshot back on disk.
// Backups are immutable once created.
type TagBackup struct {
	ID        string          `json:"id"`
	AlbumID   string          `json:"album_id"`
	Action    string          `json:"action"`
	CreatedAt time.Time       `json:"created_at"`
	Tracks    []TrackSnapshot `json:"tracks"`
}

// TrackSnapshot holds one file's tags as they were on disk. It mirrors
// every field a tag write can touch.
type TrackSnapshot struct {
	TrackID     string `json:"track_id,omitempty"`
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	TrackTotal  int    `json:"track_total,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	DiscTotal   int    `json:"disc_total,omitempty"`
}
