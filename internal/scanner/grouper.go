package scanner

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/musictaggerz/tagger-server/internal/tags"
)

// DefaultDiscPatterns recognize disc subfolder names like "CD1", "Disc 2"
// or "disk 3". Each pattern captures exactly one group holding the disc
// index or letter.
var DefaultDiscPatterns = []string{
	`(?i)^cd\s*(\d+)$`,
	`(?i)^dis[ck]\s*(\d+)$`,
	`(?i)^dis[ck]\s*([a-z])$`,
}

// Cover image extensions considered candidate folder artwork.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// DiscMatcher matches directory names against disc subfolder patterns.
type DiscMatcher struct {
	patterns []*regexp.Regexp
}

// NewDiscMatcher compiles the given patterns. Every pattern must contain
// exactly one capture group for the disc index.
func NewDiscMatcher(patterns []string) (*DiscMatcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultDiscPatterns
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid disc pattern %q: %w", p, err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("disc pattern %q must have exactly one capture group", p)
		}
		compiled = append(compiled, re)
	}

	return &DiscMatcher{patterns: compiled}, nil
}

// Match reports whether name is a disc subfolder and returns its disc
// number. Captures that parse as neither a number nor a single letter are
// treated as no match.
func (m *DiscMatcher) Match(name string) (int, bool) {
	for _, re := range m.patterns {
		groups := re.FindStringSubmatch(name)
		if groups == nil {
			continue
		}
		if disc, ok := parseDiscIndex(groups[1]); ok {
			return disc, true
		}
	}
	return 0, false
}

// parseDiscIndex converts a captured disc index ("2") or letter ("b") to a
// 1-based disc number.
func parseDiscIndex(capture string) (int, bool) {
	if n, err := strconv.Atoi(capture); err == nil && n > 0 {
		return n, true
	}
	if len(capture) == 1 {
		c := capture[0] | 0x20
		if c >= 'a' && c <= 'z' {
			return int(c-'a') + 1, true
		}
	}
	return 0, false
}

// Grouper assembles walked files into album folders.
type Grouper struct {
	discs  *DiscMatcher
	logger *slog.Logger
}

func NewGrouper(discs *DiscMatcher, logger *slog.Logger) *Grouper {
	return &Grouper{
		discs:  discs,
		logger: logger,
	}
}

// Group turns walked files into album folders. A directory holding audio
// files is an album unless its name matches a disc pattern, in which case
// its files merge into the parent album under the captured disc number.
// Subfolder names that match no pattern stay independent albums.
func (g *Grouper) Group(files []WalkResult) []AlbumFolder {
	type discGroup struct {
		tracks []TrackFile
		images []string
	}
	albums := make(map[string]*discGroup)

	for _, f := range files {
		if f.Error != nil {
			continue
		}

		dir := filepath.Dir(f.Path)
		albumPath := dir
		disc := 1
		if d, ok := g.discs.Match(filepath.Base(dir)); ok {
			albumPath = filepath.Dir(dir)
			disc = d
		}

		ext := strings.ToLower(filepath.Ext(f.Path))
		switch {
		case tags.IsAudioFile(f.Path):
			group := albums[albumPath]
			if group == nil {
				group = &discGroup{}
				albums[albumPath] = group
			}
			group.tracks = append(group.tracks, TrackFile{
				Path:    f.Path,
				RelPath: f.RelPath,
				Disc:    disc,
				Size:    f.Size,
				ModTime: f.ModTime,
			})
		case imageExtensions[ext]:
			group := albums[albumPath]
			if group == nil {
				group = &discGroup{}
				albums[albumPath] = group
			}
			group.images = append(group.images, f.Path)
		}
	}

	result := make([]AlbumFolder, 0, len(albums))
	for path, group := range albums {
		if len(group.tracks) == 0 {
			continue
		}

		sort.Slice(group.tracks, func(i, j int) bool {
			a, b := group.tracks[i], group.tracks[j]
			if a.Disc != b.Disc {
				return a.Disc < b.Disc
			}
			return a.Path < b.Path
		})
		sort.Strings(group.images)

		discs := make(map[int]bool)
		for _, t := range group.tracks {
			discs[t.Disc] = true
		}

		result = append(result, AlbumFolder{
			Path:       path,
			Tracks:     group.tracks,
			ImagePaths: group.images,
			DiscCount:  len(discs),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}
