package processor

import (
	"path/filepath"
	"strings"

	"github.com/musictaggerz/tagger-server/internal/tags"
)

// fileClass buckets a path by how the pipeline reacts to it changing.
type fileClass int

const (
	fileIgnored fileClass = iota
	fileAudio
	fileArtwork
)

var artworkExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// classifyFile decides whether a change to the path can affect a stored
// album. Audio files drive the track list, artwork files feed the cover
// lookup, everything else is noise and never triggers a rescan.
func classifyFile(path string) fileClass {
	if tags.IsAudioFile(path) {
		return fileAudio
	}
	if artworkExtensions[strings.ToLower(filepath.Ext(path))] {
		return fileArtwork
	}
	return fileIgnored
}
