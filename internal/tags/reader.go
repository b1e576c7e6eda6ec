package tags

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/musictaggerz/tagger-server/internal/errors"
	"github.com/simonhull/audiometa"
)

// FileReader reads metadata from audio files on disk.
type FileReader struct {
	logger *slog.Logger
}

// NewReader creates a metadata reader.
func NewReader(logger *slog.Logger) *FileReader {
	return &FileReader{logger: logger}
}

// ReadTags extracts tags and technical info from an audio file.
func (r *FileReader) ReadTags(ctx context.Context, path string) (*TrackTags, error) {
	format := FormatForPath(path)
	switch format {
	case "flac":
		return readFLACTags(path)
	case "mp3", "m4a", "m4b":
		return r.readWithAudiometa(ctx, path, format)
	default:
		return nil, errors.ReadFailed(fmt.Sprintf("unsupported audio format: %s", path))
	}
}

// ExtractArtwork returns the first embedded cover image, or nil if none.
func (r *FileReader) ExtractArtwork(ctx context.Context, path string) ([]byte, error) {
	if FormatForPath(path) == "flac" {
		return extractFLACPicture(path)
	}

	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReadFailed, "open audio file")
	}
	defer file.Close() //nolint:errcheck // Defer close, nothing we can do about errors here

	artworks, err := file.ExtractArtwork()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReadFailed, "extract artwork")
	}
	if len(artworks) == 0 {
		return nil, nil
	}

	// The first artwork is typically the front cover.
	return artworks[0].Data, nil
}

// readWithAudiometa handles the container formats audiometa parses natively.
func (r *FileReader) readWithAudiometa(ctx context.Context, path, format string) (*TrackTags, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReadFailed, "open audio file")
	}
	defer file.Close() //nolint:errcheck

	genre := ""
	if len(file.Tags.Genres) > 0 {
		genre = file.Tags.Genres[0]
	}

	t := &TrackTags{
		Title:       file.Tags.Title,
		Artist:      file.Tags.Artist,
		Album:       file.Tags.Album,
		Genre:       genre,
		Year:        file.Tags.Year,
		TrackNumber: file.Tags.TrackNumber,
		TrackTotal:  file.Tags.TrackTotal,
		DiscNumber:  file.Tags.DiscNumber,
		DiscTotal:   file.Tags.DiscTotal,
		Duration:    file.Audio.Duration,
		Format:      format,
	}

	return t, nil
}

// parseVorbisNumber parses fields like "3" or "3/12" and returns number and total.
func parseVorbisNumber(value string) (num, total int) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0
	}

	if idx := strings.IndexByte(value, '/'); idx >= 0 {
		num, _ = strconv.Atoi(strings.TrimSpace(value[:idx]))
		total, _ = strconv.Atoi(strings.TrimSpace(value[idx+1:]))
		return num, total
	}

	num, _ = strconv.Atoi(value)
	return num, 0
}

// parseVorbisYear extracts a year from a DATE field ("1994" or "1994-08-22").
func parseVorbisYear(value string) int {
	value = strings.TrimSpace(value)
	if len(value) >= 4 {
		if year, err := strconv.Atoi(value[:4]); err == nil {
			return year
		}
	}
	return 0
}
