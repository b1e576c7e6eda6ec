// Package sse implements Server-Sent Events for real-time pipeline updates and event broadcasting.
package sse

import (
	"time"

	"github.com/musictaggerz/tagger-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventAlbumCreated represents an album discovery event.
	EventAlbumCreated EventType = "album.created"
	// EventAlbumUpdated represents an album update event.
	EventAlbumUpdated EventType = "album.updated"
	// EventAlbumDeleted represents an album deletion event.
	EventAlbumDeleted EventType = "album.deleted"
	// EventAlbumStatusChanged represents a pipeline status transition.
	EventAlbumStatusChanged EventType = "album.status_changed"

	// EventTaggingProgress reports the current stage while an album is processed.
	EventTaggingProgress EventType = "tagging.progress"

	// EventQueueUpdated reports queue depth changes.
	EventQueueUpdated EventType = "queue.updated"

	// EventScanStarted represents a library scan start event.
	EventScanStarted EventType = "library.scan_started"
	// EventScanComplete represents a library scan completion event.
	EventScanComplete EventType = "library.scan_completed"

	// EventNotice carries operator-facing warnings, such as the watcher
	// degrading to polling.
	EventNotice EventType = "notice"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Tagging stages reported through EventTaggingProgress.
const (
	StageReading   = "reading"
	StageSearching = "searching"
	StageScoring   = "scoring"
	StageWriting   = "writing"
	StageArtwork   = "artwork"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"` // Event-specific data as JSON object
	Type      EventType `json:"type"`
}

// AlbumEventData is the data payload for album events.
// Contains the full album so events are self-contained and immediately
// renderable without additional lookups.
type AlbumEventData struct {
	Album *domain.Album `json:"album"`
}

// AlbumDeletedEventData is the data payload for album delete events.
type AlbumDeletedEventData struct {
	DeletedAt time.Time `json:"deleted_at"`
	AlbumID   string    `json:"album_id"`
}

// StatusChangedEventData is the data payload for status transition events.
type StatusChangedEventData struct {
	AlbumID    string             `json:"album_id"`
	AlbumTitle string             `json:"album_title"`
	Artist     string             `json:"artist,omitempty"`
	OldStatus  domain.AlbumStatus `json:"old_status"`
	NewStatus  domain.AlbumStatus `json:"new_status"`
	Confidence float64            `json:"confidence,omitempty"`
	ReleaseID  string             `json:"release_id,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// TaggingProgressEventData is the data payload for tagging progress events.
type TaggingProgressEventData struct {
	AlbumID string `json:"album_id"`
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
}

// QueueUpdatedEventData is the data payload for queue depth events.
type QueueUpdatedEventData struct {
	Size       int    `json:"size"`
	Processing string `json:"processing,omitempty"` // album ID in flight, if any
}

// ScanStartedEventData is the data payload for scan start events.
type ScanStartedEventData struct {
	StartedAt time.Time `json:"started_at"`
	Path      string    `json:"path"`
}

// ScanCompleteEventData is the data payload for scan complete events.
type ScanCompleteEventData struct {
	CompletedAt   time.Time `json:"completed_at"`
	Path          string    `json:"path"`
	AlbumsAdded   int       `json:"albums_added"`
	AlbumsUpdated int       `json:"albums_updated"`
	AlbumsRemoved int       `json:"albums_removed"`
}

// NoticeEventData is the data payload for notice events.
type NoticeEventData struct {
	Level   string `json:"level"` // "info" or "warning"
	Message string `json:"message"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewAlbumCreatedEvent creates an album.created event.
func NewAlbumCreatedEvent(album *domain.Album) Event {
	return Event{
		Type:      EventAlbumCreated,
		Data:      AlbumEventData{Album: album},
		Timestamp: time.Now(),
	}
}

// NewAlbumUpdatedEvent creates an album.updated event.
func NewAlbumUpdatedEvent(album *domain.Album) Event {
	return Event{
		Type:      EventAlbumUpdated,
		Data:      AlbumEventData{Album: album},
		Timestamp: time.Now(),
	}
}

// NewAlbumDeletedEvent creates an album.deleted event.
func NewAlbumDeletedEvent(albumID string, deletedAt time.Time) Event {
	return Event{
		Type: EventAlbumDeleted,
		Data: AlbumDeletedEventData{
			AlbumID:   albumID,
			DeletedAt: deletedAt,
		},
		Timestamp: time.Now(),
	}
}

// NewStatusChangedEvent creates an album.status_changed event.
func NewStatusChangedEvent(album *domain.Album, old domain.AlbumStatus) Event {
	return Event{
		Type: EventAlbumStatusChanged,
		Data: StatusChangedEventData{
			AlbumID:    album.ID,
			AlbumTitle: album.Title,
			Artist:     album.Artist,
			OldStatus:  old,
			NewStatus:  album.Status,
			Confidence: album.MatchConfidence,
			ReleaseID:  album.ReleaseID,
			Error:      album.ErrorMessage,
		},
		Timestamp: time.Now(),
	}
}

// NewTaggingProgressEvent creates a tagging.progress event.
func NewTaggingProgressEvent(albumID, stage, message string) Event {
	return Event{
		Type: EventTaggingProgress,
		Data: TaggingProgressEventData{
			AlbumID: albumID,
			Stage:   stage,
			Message: message,
		},
		Timestamp: time.Now(),
	}
}

// NewQueueUpdatedEvent creates a queue.updated event.
func NewQueueUpdatedEvent(size int, processing string) Event {
	return Event{
		Type: EventQueueUpdated,
		Data: QueueUpdatedEventData{
			Size:       size,
			Processing: processing,
		},
		Timestamp: time.Now(),
	}
}

// NewScanStartedEvent creates a library.scan_started event.
func NewScanStartedEvent(path string) Event {
	return Event{
		Type: EventScanStarted,
		Data: ScanStartedEventData{
			Path:      path,
			StartedAt: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// NewScanCompleteEvent creates a library.scan_completed event.
func NewScanCompleteEvent(path string, added, updated, removed int) Event {
	return Event{
		Type: EventScanComplete,
		Data: ScanCompleteEventData{
			Path:          path,
			CompletedAt:   time.Now(),
			AlbumsAdded:   added,
			AlbumsUpdated: updated,
			AlbumsRemoved: removed,
		},
		Timestamp: time.Now(),
	}
}

// NewNoticeEvent creates a notice event.
func NewNoticeEvent(level, message string) Event {
	return Event{
		Type: EventNotice,
		Data: NoticeEventData{
			Level:   level,
			Message: message,
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
