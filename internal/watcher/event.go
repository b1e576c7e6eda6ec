package watcher

import "time"

// EventType represents the type of filesystem event.
type EventType int

const (
	// EventAdded is emitted when a new path appears and stabilizes.
	EventAdded EventType = iota
	// EventModified is emitted when a known path changes and stabilizes.
	EventModified
	// EventRemoved is emitted when a path is deleted.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a stabilized filesystem change under the music root.
// Path is a file for the native backend and an album directory for the
// polling fallback; consumers resolve either to its album folder.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
