package musicbrainz

import (
	"errors"
	"fmt"
)

// Sentinel errors for MusicBrainz API operations.
var (
	ErrNotFound    = errors.New("musicbrainz: not found")
	ErrRateLimited = errors.New("musicbrainz: rate limited by server")
	ErrBadRequest  = errors.New("musicbrainz: bad request")
	ErrServer      = errors.New("musicbrainz: server error")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string // Operation: "search", "getRelease"
	Query string // Search query or release ID
	Err   error
}

func (e *Error) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("musicbrainz %s [%s]: %v", e.Op, e.Query, e.Err)
	}
	return fmt.Sprintf("musicbrainz %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError creates an Error with context.
func wrapError(op, query string, err error) error {
	return &Error{
		Op:    op,
		Query: query,
		Err:   err,
	}
}
