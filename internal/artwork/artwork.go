// Package artwork locates cover art for tagged albums. Configured sources
// are tried in priority order; the winning image is saved into the album
// folder, embedded into every track and summarized as a blurhash.
package artwork

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/musictaggerz/tagger-server/internal/artwork/images"
	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

// Query identifies the album a cover is wanted for. Sources use whichever
// fields they understand.
type Query struct {
	Folder         string
	Artist         string
	Album          string
	ReleaseID      string
	ReleaseGroupID string
}

// Cover is a fetched cover image. Path is set when the image already
// lives in the album folder.
type Cover struct {
	Data   []byte
	MIME   string
	Source string
	Path   string
	Width  int
	Height int
}

// Source is one place cover art can come from. Fetch returns (nil, nil)
// when the source has nothing for the query.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (*Cover, error)
}

// Fetcher runs the source chain and applies the result to an album.
type Fetcher struct {
	sources []Source
	writer  tags.Writer
	cfg     config.ArtworkConfig
	logger  *slog.Logger
}

func NewFetcher(cfg config.ArtworkConfig, writer tags.Writer, logger *slog.Logger) *Fetcher {
	available := map[string]Source{
		"filesystem": &folderSource{logger: logger},
		"coverart":   newCoverArtSource(logger),
		"itunes":     newITunesSource(logger),
	}

	var sources []Source
	for _, name := range cfg.Sources {
		src, ok := available[name]
		if !ok {
			logger.Warn("unknown artwork source", slog.String("source", name))
			continue
		}
		sources = append(sources, src)
	}

	return &Fetcher{
		sources: sources,
		writer:  writer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch tries each configured source in order and returns the first image
// that actually decodes. A source failing is not fatal, the chain moves
// on. Returns (nil, nil) when every source came up empty.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (*Cover, error) {
	for _, src := range f.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cover, err := src.Fetch(ctx, q)
		if err != nil {
			f.logger.Debug("artwork source failed",
				slog.String("source", src.Name()),
				slog.Any("error", err),
			)
			continue
		}
		if cover == nil {
			continue
		}

		info, err := images.Probe(cover.Data)
		if err != nil {
			f.logger.Debug("artwork source returned undecodable image",
				slog.String("source", src.Name()),
				slog.Any("error", err),
			)
			continue
		}
		cover.Width = info.Width
		cover.Height = info.Height
		if cover.MIME == "" {
			cover.MIME = info.MIME
		}
		cover.Source = src.Name()

		f.logger.Info("artwork found",
			slog.String("source", cover.Source),
			slog.Int("width", cover.Width),
			slog.Int("height", cover.Height),
		)
		return cover, nil
	}
	return nil, nil
}

// Apply fetches a cover for the freshly tagged album, saves and embeds it
// per configuration, and records cover path and blurhash on the album.
// Finding no artwork is not an error; a tagged album without a cover is
// still tagged.
func (f *Fetcher) Apply(ctx context.Context, album *domain.Album, release *musicbrainz.Release) error {
	q := Query{
		Folder: album.Path,
		Artist: album.Artist,
		Album:  album.Title,
	}
	if release != nil {
		q.Artist = release.Artist
		q.Album = release.Title
		q.ReleaseID = release.ID
		q.ReleaseGroupID = release.ReleaseGroupID
	}

	cover, err := f.Fetch(ctx, q)
	if err != nil {
		return err
	}
	if cover == nil {
		f.logger.Info("no artwork found",
			slog.String("album_id", album.ID),
			slog.String("album", album.DisplayName()),
		)
		return nil
	}

	switch {
	case cover.Path != "":
		album.CoverPath = cover.Path
	case f.cfg.SaveFile:
		path, err := f.saveToFolder(album.Path, cover)
		if err != nil {
			return err
		}
		album.CoverPath = path
	}

	if hash, err := images.ComputeBlurhash(cover.Data); err == nil {
		album.CoverBlurhash = hash
	} else {
		f.logger.Debug("blurhash computation failed",
			slog.String("album_id", album.ID),
			slog.Any("error", err),
		)
	}

	if f.cfg.Embed && f.writer != nil {
		f.embedAll(ctx, album, cover)
	}
	return nil
}

// embedAll writes the cover into every track. Per-track failures only
// log; the saved folder image is already the canonical copy.
func (f *Fetcher) embedAll(ctx context.Context, album *domain.Album, cover *Cover) {
	embedded := 0
	for _, track := range album.Tracks {
		if ctx.Err() != nil {
			return
		}
		if err := f.writer.EmbedArtwork(ctx, track.Path, cover.Data, cover.MIME); err != nil {
			f.logger.Warn("failed to embed artwork",
				slog.String("path", track.Path),
				slog.Any("error", err),
			)
			continue
		}
		embedded++
	}
	f.logger.Info("artwork embedded",
		slog.String("album_id", album.ID),
		slog.Int("embedded", embedded),
		slog.Int("tracks", len(album.Tracks)),
	)
}

func (f *Fetcher) saveToFolder(folder string, cover *Cover) (string, error) {
	name := "cover.jpg"
	if cover.MIME == "image/png" {
		name = "cover.png"
	}
	path := filepath.Join(folder, name)
	if err := os.WriteFile(path, cover.Data, 0o644); err != nil {
		return "", fmt.Errorf("save cover: %w", err)
	}
	f.logger.Debug("cover saved",
		slog.String("path", path),
		slog.Int("bytes", len(cover.Data)),
	)
	return path, nil
}
