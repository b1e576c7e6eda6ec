package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/musictaggerz/tagger-server/internal/tags"
)

// Scanner discovers album folders under the music root. It is stateless:
// every Scan re-walks from scratch, so a scan can be restarted at any time.
type Scanner struct {
	walker  *Walker
	grouper *Grouper
	parser  *Parser
	discs   *DiscMatcher
	logger  *slog.Logger
}

// New creates a scanner. discPatterns override DefaultDiscPatterns when
// non-empty.
func New(reader tags.Reader, discPatterns []string, logger *slog.Logger) (*Scanner, error) {
	discs, err := NewDiscMatcher(discPatterns)
	if err != nil {
		return nil, err
	}

	return &Scanner{
		walker:  NewWalker(logger),
		grouper: NewGrouper(discs, logger),
		parser:  NewParser(reader, logger),
		discs:   discs,
		logger:  logger,
	}, nil
}

// Scan walks the music root and returns every discovered album folder plus
// notices for directories that could not be read. A missing root is fatal.
func (s *Scanner) Scan(ctx context.Context, rootPath string) ([]AlbumFolder, []Notice, error) {
	if _, err := os.Stat(rootPath); err != nil {
		return nil, nil, fmt.Errorf("music root not accessible: %w", err)
	}

	start := time.Now()
	s.logger.Info("starting scan", "path", rootPath)

	var files []WalkResult
	var notices []Notice
	for wr := range s.walker.Walk(ctx, rootPath) {
		if wr.Error != nil {
			notices = append(notices, Notice{
				Path:    wr.Path,
				Message: fmt.Sprintf("skipped unreadable path: %v", wr.Error),
			})
			continue
		}
		files = append(files, wr)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	albums := s.grouper.Group(files)

	s.logger.Info("scan complete",
		"path", rootPath,
		"files", len(files),
		"albums", len(albums),
		"notices", len(notices),
		"duration", time.Since(start))

	return albums, notices, nil
}

// ScanFolder re-scans a single album folder, following disc subfolders.
// folderPath may point at a disc subfolder; it is resolved to the album
// folder first. Returns nil when the folder holds no audio files.
func (s *Scanner) ScanFolder(ctx context.Context, folderPath string) (*AlbumFolder, error) {
	folderPath = s.AlbumRoot(folderPath)

	if _, err := os.Stat(folderPath); err != nil {
		return nil, fmt.Errorf("folder not accessible: %w", err)
	}

	var files []WalkResult
	for wr := range s.walker.WalkFolder(ctx, folderPath, s.discs) {
		if wr.Error != nil {
			// An unreadable directory must not pass for an empty one.
			return nil, fmt.Errorf("read %s: %w", wr.Path, wr.Error)
		}
		files = append(files, wr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Re-resolve disc membership relative to the album folder.
	albums := s.grouper.Group(files)
	for i := range albums {
		if albums[i].Path == folderPath {
			return &albums[i], nil
		}
	}

	s.logger.Debug("no audio files in folder", "path", folderPath)
	return nil, nil
}

// Parse reads the tags of every track in the folder and derives
// album-level metadata.
func (s *Scanner) Parse(ctx context.Context, folder AlbumFolder) (*ParsedAlbum, error) {
	return s.parser.Parse(ctx, folder)
}

// AlbumRoot maps a path to the album folder that owns it: a disc subfolder
// resolves to its parent, anything else to itself.
func (s *Scanner) AlbumRoot(path string) string {
	if _, ok := s.discs.Match(filepath.Base(path)); ok {
		return filepath.Dir(path)
	}
	return path
}
