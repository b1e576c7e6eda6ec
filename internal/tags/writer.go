package tags

import (
	"context"
	"log/slog"
)

// FileWriter writes tags and artwork into audio files on disk. FLAC and MP3
// are supported; MP4 containers are read-only.
type FileWriter struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *FileWriter {
	return &FileWriter{logger: logger}
}

// WriteTags replaces the tags of the file at path.
func (w *FileWriter) WriteTags(ctx context.Context, path string, t *TrackTags) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch FormatForPath(path) {
	case "flac":
		if err := writeFLACTags(path, t); err != nil {
			return err
		}
	case "mp3":
		if err := writeMP3Tags(path, t); err != nil {
			return err
		}
	default:
		return errUnsupportedWrite(path)
	}

	w.logger.DebugContext(ctx, "Wrote tags",
		slog.String("path", path),
		slog.String("artist", t.Artist),
		slog.String("album", t.Album),
		slog.String("title", t.Title))

	return nil
}

// EmbedArtwork replaces the embedded cover art of the file at path.
func (w *FileWriter) EmbedArtwork(ctx context.Context, path string, image []byte, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch FormatForPath(path) {
	case "flac":
		if err := embedFLACPicture(path, image, mimeType); err != nil {
			return err
		}
	case "mp3":
		if err := embedMP3Picture(path, image, mimeType); err != nil {
			return err
		}
	default:
		return errUnsupportedWrite(path)
	}

	w.logger.DebugContext(ctx, "Embedded artwork",
		slog.String("path", path),
		slog.String("mime_type", mimeType),
		slog.Int("bytes", len(image)))

	return nil
}
