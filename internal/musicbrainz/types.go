package musicbrainz

// Track is one recording on a release, in playback order across discs.
type Track struct {
	Position    int
	Title       string
	DurationMS  int
	RecordingID string
}

// DurationSeconds returns the track length in seconds, or 0 when unknown.
func (t Track) DurationSeconds() float64 {
	return float64(t.DurationMS) / 1000.0
}

// Release is one concrete release of an album. Search results carry the
// summary fields only; GetRelease fills in tracks, genres and the original
// release year.
type Release struct {
	ID             string
	Title          string
	Artist         string
	Year           int
	OriginalYear   int
	TrackCount     int
	Country        string
	Media          string
	Label          string
	Barcode        string
	ReleaseGroupID string
	Genres         []string
	Tracks         []Track
}
