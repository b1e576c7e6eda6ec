package scanner

// WalkResult represents a file discovered during walking.
type WalkResult struct {
	Error   error
	Path    string
	RelPath string
	Size    int64
	ModTime int64
}

// TrackFile is one audio file assigned to an album folder.
type TrackFile struct {
	Path    string
	RelPath string
	Disc    int
	Size    int64
	ModTime int64
}

// AlbumFolder is a candidate album discovered by a scan. Path is the album
// directory itself, or the parent directory when the tracks live in disc
// subfolders. Not persisted; the processor turns it into a stored album.
type AlbumFolder struct {
	Path       string
	Tracks     []TrackFile
	ImagePaths []string
	DiscCount  int
}

// Notice reports a non-fatal problem encountered during a scan.
type Notice struct {
	Path    string
	Message string
}
