package domain

// Album represents one album folder in the music library.
// Path is the folder itself for single-disc albums, or the parent of the
// disc subfolders for multi-disc sets.
type Album struct {
	Entity
	Path            string      `json:"path"`
	Artist          string      `json:"artist"`
	Title           string      `json:"title"`
	Year            int         `json:"year,omitempty"`
	Status          AlbumStatus `json:"status"`
	MatchConfidence float64     `json:"match_confidence,omitempty"`
	ReleaseID       string      `json:"release_id,omitempty"`
	Label           string      `json:"label,omitempty"`
	Genres          []string    `json:"genres,omitempty"`
	CoverPath       string      `json:"cover_path,omitempty"`
	CoverBlurhash   string      `json:"cover_blurhash,omitempty"`
	DiscCount       int         `json:"disc_count"`
	TrackCount      int         `json:"track_count"`
	TotalDuration   float64     `json:"total_duration"` // seconds
	ErrorMessage    string      `json:"error_message,omitempty"`
	RetryCount      int         `json:"retry_count"`
	Tracks          []Track     `json:"tracks"`
}

// Track represents one audio file within an album.
type Track struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	Filename    string  `json:"filename"`
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	TrackNumber int     `json:"track_number,omitempty"`
	DiscNumber  int     `json:"disc_number,omitempty"`
	Duration    float64 `json:"duration"` // seconds
	Format      string  `json:"format,omitempty"`
	Size        int64   `json:"size"`
	ModTime     int64   `json:"mod_time"`
	// WriteError records a per-track tagging failure without failing the album.
	WriteError string `json:"write_error,omitempty"`
}

// SetStatus moves the album to next, enforcing the transition rules.
func (a *Album) SetStatus(next AlbumStatus) error {
	if !a.Status.CanTransition(next) {
		return &ErrInvalidTransition{From: a.Status, To: next}
	}
	a.Status = next
	a.Touch()
	return nil
}

// SetError records a failure message and bumps the retry counter.
func (a *Album) SetError(msg string) {
	a.ErrorMessage = msg
	a.RetryCount++
	a.Touch()
}

// ClearError resets failure bookkeeping, typically before a fresh attempt.
func (a *Album) ClearError() {
	a.ErrorMessage = ""
	a.Touch()
}

// TrackByPath finds a track by its file path.
func (a *Album) TrackByPath(path string) *Track {
	for i := range a.Tracks {
		if a.Tracks[i].Path == path {
			return &a.Tracks[i]
		}
	}
	return nil
}

// UpdateTrack updates an existing track or adds it if not found.
// Returns true if this was an update (ie. the track existed), false if it was added.
func (a *Album) UpdateTrack(track Track) bool {
	for i := range a.Tracks {
		if a.Tracks[i].Path == track.Path {
			a.Tracks[i] = track
			return true
		}
	}
	a.Tracks = append(a.Tracks, track)
	return false
}

// RemoveTrackByPath removes a track by path.
// Returns true if a track was removed.
func (a *Album) RemoveTrackByPath(path string) bool {
	for i := range a.Tracks {
		if a.Tracks[i].Path == path {
			a.Tracks = append(a.Tracks[:i], a.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

// RecalculateTotals recalculates track count and total duration from tracks.
func (a *Album) RecalculateTotals() {
	a.TrackCount = len(a.Tracks)
	a.TotalDuration = 0
	for _, t := range a.Tracks {
		a.TotalDuration += t.Duration
	}
}

// TrackDurations returns the durations of all tracks in track order, in seconds.
func (a *Album) TrackDurations() []float64 {
	durations := make([]float64, len(a.Tracks))
	for i, t := range a.Tracks {
		durations[i] = t.Duration
	}
	return durations
}

// DisplayName renders "Artist - Title" for logs and notifications.
func (a *Album) DisplayName() string {
	if a.Artist == "" {
		return a.Title
	}
	return a.Artist + " - " + a.Title
}
