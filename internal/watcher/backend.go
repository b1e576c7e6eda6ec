package watcher

import "context"

// backend is one event source implementation. The Watcher facade swaps
// the native backend for the polling one when the native backend fails.
type backend interface {
	// Watch registers the root to monitor. Must be called before Start.
	Watch(path string) error

	// Start launches the backend's goroutines. Non-blocking; the backend
	// stops when ctx is cancelled or Stop is called.
	Start(ctx context.Context)

	// Stop releases resources and closes the event and error channels.
	Stop()

	// Events delivers stabilized filesystem events.
	Events() <-chan Event

	// Errors delivers backend failures. An error here means the backend
	// can no longer be trusted to see changes.
	Errors() <-chan error
}
