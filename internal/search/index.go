package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/musictaggerz/tagger-server/internal/domain"
)

// SearchIndex wraps a Bleve index with album-specific operations.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex // Protects index operations during rebuild
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

// NewSearchIndex creates or opens a search index.
// If an existing index is found, it opens it. Otherwise, creates a new one.
// If the existing index is corrupted or has an outdated mapping, it's removed and recreated.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "albums.bleve")
	versionPath := filepath.Join(opts.DataPath, "albums.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	// Check mapping version - rebuild if version file missing or mismatched
	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			// Version file missing but index exists - this is an old index
			logger.Info("search index has no version file, will rebuild with current mapping",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	// Try to open existing index (if not forcing rebuild)
	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	// Remove old index if rebuild needed
	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	// Create new index if needed
	if index == nil {
		indexMapping := buildIndexMapping()
		index, err = bleve.New(indexPath, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		// Write version file
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexAlbum indexes a single album. Implements the store's SearchIndexer
// so album mutations flow into the index automatically.
func (s *SearchIndex) IndexAlbum(_ context.Context, album *domain.Album) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := AlbumToDocument(album)
	// Convert to map to ensure field names match the mapping (lowercase)
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteAlbum removes an album from the index.
func (s *SearchIndex) DeleteAlbum(_ context.Context, albumID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(albumID)
}

// IndexAlbums indexes multiple albums in a batch.
// This is significantly faster than calling IndexAlbum in a loop.
// For large libraries, albums are processed in chunks to prevent
// memory pressure during initial indexing.
func (s *SearchIndex) IndexAlbums(albums []*domain.Album) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(albums); i += batchSize {
		end := i + batchSize
		if end > len(albums) {
			end = len(albums)
		}
		chunk := albums[i:end]

		batch := s.index.NewBatch()
		for _, album := range chunk {
			doc := AlbumToDocument(album)
			// Convert to map to ensure field names match the mapping (lowercase)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DocumentCount returns the total number of indexed albums.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// AlbumLister supplies the albums for a full reindex.
type AlbumLister interface {
	ListAllAlbums(ctx context.Context) ([]*domain.Album, error)
}

// ReindexAll drops the existing index and rebuilds it from the store.
// This is a heavy operation - it acquires an exclusive lock during the
// rebuild step and blocks all other index operations.
func (s *SearchIndex) ReindexAll(ctx context.Context, lister AlbumLister) error {
	s.logger.Info("starting full reindex")

	if err := s.rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	albums, err := lister.ListAllAlbums(ctx)
	if err != nil {
		return fmt.Errorf("list albums: %w", err)
	}

	if len(albums) > 0 {
		if err := s.IndexAlbums(albums); err != nil {
			return fmt.Errorf("index albums: %w", err)
		}
	}

	total, _ := s.DocumentCount()
	s.logger.Info("full reindex complete", "total_documents", total)

	return nil
}

// rebuild drops the existing index and creates a fresh empty one.
func (s *SearchIndex) rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close existing index
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	// Remove index directory
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	// Create fresh index
	indexMapping := buildIndexMapping()
	index, err := bleve.New(s.path, indexMapping)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}
