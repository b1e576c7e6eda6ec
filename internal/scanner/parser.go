package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/errors"
	"github.com/musictaggerz/tagger-server/internal/id"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

// ParsedAlbum is an album folder enriched with tag metadata, ready to be
// stored and matched.
type ParsedAlbum struct {
	Folder AlbumFolder
	Artist string
	Title  string
	Year   int
	Genre  string
	Tracks []domain.Track
}

// Parser reads tags from the tracks of an album folder and derives
// album-level metadata by majority vote.
type Parser struct {
	reader tags.Reader
	logger *slog.Logger
}

func NewParser(reader tags.Reader, logger *slog.Logger) *Parser {
	return &Parser{
		reader: reader,
		logger: logger,
	}
}

// Parse reads every track of the folder concurrently and builds the parsed
// album. A track that cannot be read fails the whole album: half-read
// albums produce junk matches.
func (p *Parser) Parse(ctx context.Context, folder AlbumFolder) (*ParsedAlbum, error) {
	if len(folder.Tracks) == 0 {
		return nil, errors.ReadFailed("album folder has no audio files")
	}

	read, err := p.readAll(ctx, folder.Tracks)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedAlbum{
		Folder: folder,
		Tracks: make([]domain.Track, 0, len(folder.Tracks)),
	}

	var artists, albumArtists, titles, genres vote
	var years voteInt

	for i, file := range folder.Tracks {
		t := read[i]

		artists.add(t.Artist)
		albumArtists.add(t.AlbumArtist)
		titles.add(t.Album)
		genres.add(t.Genre)
		years.add(t.Year)

		trackNumber := t.TrackNumber
		if trackNumber == 0 {
			trackNumber = i + 1
		}
		discNumber := t.DiscNumber
		if discNumber == 0 {
			discNumber = file.Disc
		}

		parsed.Tracks = append(parsed.Tracks, domain.Track{
			ID:          id.MustGenerate(id.PrefixTrack),
			Path:        file.Path,
			Filename:    filepath.Base(file.Path),
			Title:       t.Title,
			Artist:      t.Artist,
			TrackNumber: trackNumber,
			DiscNumber:  discNumber,
			Duration:    t.Duration.Seconds(),
			Format:      t.Format,
			Size:        file.Size,
			ModTime:     file.ModTime,
		})
	}

	sort.Slice(parsed.Tracks, func(i, j int) bool {
		a, b := parsed.Tracks[i], parsed.Tracks[j]
		if a.DiscNumber != b.DiscNumber {
			return a.DiscNumber < b.DiscNumber
		}
		return a.TrackNumber < b.TrackNumber
	})

	// Album artist wins over per-track artists on compilations.
	parsed.Artist = albumArtists.winner()
	if parsed.Artist == "" {
		parsed.Artist = artists.winner()
	}
	parsed.Title = titles.winner()
	parsed.Genre = genres.winner()
	parsed.Year = years.winner()

	if parsed.Artist == "" || parsed.Title == "" {
		fallbackArtist, fallbackTitle := splitFolderName(folder.Path)
		if parsed.Artist == "" {
			parsed.Artist = fallbackArtist
		}
		if parsed.Title == "" {
			parsed.Title = fallbackTitle
		}
	}

	return parsed, nil
}

// readAll reads tags for all tracks with a small worker pool, preserving
// input order.
func (p *Parser) readAll(ctx context.Context, files []TrackFile) ([]*tags.TrackTags, error) {
	type job struct {
		index int
		path  string
	}
	type result struct {
		index int
		tags  *tags.TrackTags
		err   error
	}

	workers := min(runtime.NumCPU(), len(files))
	jobs := make(chan job, len(files))
	results := make(chan result, len(files))

	for range workers {
		go func() {
			for j := range jobs {
				t, err := p.reader.ReadTags(ctx, j.path)
				results <- result{index: j.index, tags: t, err: err}
			}
		}()
	}

	for i, f := range files {
		jobs <- job{index: i, path: f.Path}
	}
	close(jobs)

	read := make([]*tags.TrackTags, len(files))
	var firstErr error
	for range files {
		select {
		case r := <-results:
			if r.err != nil {
				p.logger.Warn("failed to read tags", "path", files[r.index].Path, "error", r.err)
				if firstErr == nil {
					firstErr = errors.Wrap(r.err, errors.CodeReadFailed,
						fmt.Sprintf("read %s", filepath.Base(files[r.index].Path)))
				}
				continue
			}
			read[r.index] = r.tags
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return read, nil
}

// vote tallies non-empty string values and picks the most common one.
// Ties break towards the first value seen.
type vote struct {
	counts map[string]int
	order  []string
}

func (v *vote) add(value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if v.counts == nil {
		v.counts = make(map[string]int)
	}
	if v.counts[value] == 0 {
		v.order = append(v.order, value)
	}
	v.counts[value]++
}

func (v *vote) winner() string {
	best := ""
	bestCount := 0
	for _, value := range v.order {
		if v.counts[value] > bestCount {
			best = value
			bestCount = v.counts[value]
		}
	}
	return best
}

// voteInt is vote for non-zero ints.
type voteInt struct {
	counts map[int]int
	order  []int
}

func (v *voteInt) add(value int) {
	if value == 0 {
		return
	}
	if v.counts == nil {
		v.counts = make(map[int]int)
	}
	if v.counts[value] == 0 {
		v.order = append(v.order, value)
	}
	v.counts[value]++
}

func (v *voteInt) winner() int {
	best := 0
	bestCount := 0
	for _, value := range v.order {
		if v.counts[value] > bestCount {
			best = value
			bestCount = v.counts[value]
		}
	}
	return best
}

// splitFolderName derives artist and album from a folder named
// "Artist - Album". Without a separator the whole name is the album title.
func splitFolderName(path string) (artist, album string) {
	base := filepath.Base(path)
	if artist, album, found := strings.Cut(base, " - "); found {
		return strings.TrimSpace(artist), strings.TrimSpace(album)
	}
	return "", base
}
