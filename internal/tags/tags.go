// Package tags reads and writes audio file metadata.
//
// Reading is delegated to the audiometa library for MP3 and MP4 containers,
// with a native FLAC parser for Vorbis comments. Writing supports FLAC and
// MP3 (ID3v2.4); MP4 containers are read-only because rewriting their atom
// tree in place is not worth the risk of corrupting the audio stream.
package tags

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/musictaggerz/tagger-server/internal/errors"
)

// TrackTags holds the metadata for a single audio file.
type TrackTags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Year        int

	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int

	Duration time.Duration
	Format   string // "flac", "mp3", "m4a", "m4b"
}

// Reader extracts metadata from audio files.
type Reader interface {
	ReadTags(ctx context.Context, path string) (*TrackTags, error)
	ExtractArtwork(ctx context.Context, path string) ([]byte, error)
}

// Writer applies metadata to audio files.
type Writer interface {
	WriteTags(ctx context.Context, path string, t *TrackTags) error
	EmbedArtwork(ctx context.Context, path string, image []byte, mimeType string) error
}

// SupportedExtensions lists the audio file extensions the pipeline handles.
var SupportedExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
}

// FormatForPath returns the normalized format name for a file path,
// or "" if the extension is not a supported audio format.
func FormatForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if !SupportedExtensions[ext] {
		return ""
	}
	return ext[1:]
}

// IsAudioFile reports whether the path has a supported audio extension.
func IsAudioFile(path string) bool {
	return FormatForPath(path) != ""
}

// errUnsupportedWrite builds the error returned for formats we can read but not write.
func errUnsupportedWrite(path string) error {
	return errors.WriteFailed(fmt.Sprintf("tag writing not supported for %q", filepath.Ext(path)))
}
