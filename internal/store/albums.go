package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/sse"
)

const (
	albumPrefix         = "album:"
	albumByPathPrefix   = "idx:albums:path:"
	albumByStatusPrefix = "album:idx:status:"
)

var (
	ErrAlbumNotFound = errors.New("album not found")
	ErrAlbumExists   = errors.New("album already exists")
)

// statusIndexKey builds the key-only status index entry for an album.
// Key format: album:idx:status:{status}:{id}.
func statusIndexKey(status domain.AlbumStatus, id string) []byte {
	return []byte(albumByStatusPrefix + string(status) + ":" + id)
}

// Album Operations

// CreateAlbum creates a new album
func (s *Store) CreateAlbum(ctx context.Context, album *domain.Album) error {
	key := []byte(albumPrefix + album.ID)

	// Check if it already exists
	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check album exists: %w", err)
	}
	if exists {
		return ErrAlbumExists
	}

	// Use transaction to create album indices atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		// Save album
		data, err := json.Marshal(album)
		if err != nil {
			return fmt.Errorf("marshal album: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Create path index
		pathKey := []byte(albumByPathPrefix + album.Path)
		if err := txn.Set(pathKey, []byte(album.ID)); err != nil {
			return err
		}

		// Create status index (key-only, for pipeline queries)
		return txn.Set(statusIndexKey(album.Status, album.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("create album: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "album created",
			slog.String("id", album.ID),
			slog.String("artist", album.Artist),
			slog.String("title", album.Title),
			slog.String("path", album.Path),
			slog.Int("tracks", len(album.Tracks)),
		)
	}

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(sse.NewAlbumCreatedEvent(album))
	}

	s.indexAlbumAsync(album)
	return nil
}

// GetAlbum retrieves an album by ID
func (s *Store) GetAlbum(ctx context.Context, id string) (*domain.Album, error) {
	key := buildKey(albumPrefix, id)
	defer releaseKey(key)

	var album domain.Album
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &album)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, fmt.Errorf("get album: %w", err)
	}
	return &album, nil
}

// GetAlbumByPath retrieves an album by its folder path.
// This is used during scanning and file watching for fast lookups.
func (s *Store) GetAlbumByPath(ctx context.Context, path string) (*domain.Album, error) {
	pathKey := buildKey(albumByPathPrefix, path)
	defer releaseKey(pathKey)

	var albumID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pathKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			albumID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, fmt.Errorf("get album by path: %w", err)
	}
	return s.GetAlbum(ctx, albumID)
}

// UpdateAlbum updates an existing album
func (s *Store) UpdateAlbum(ctx context.Context, album *domain.Album) error {
	key := []byte(albumPrefix + album.ID)

	// Get old album for index updates
	oldAlbum, err := s.GetAlbum(ctx, album.ID)
	if err != nil {
		return err
	}

	// Use transaction to update album and indices atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		album.Touch()
		// Update album
		data, err := json.Marshal(album)
		if err != nil {
			return fmt.Errorf("marshal album: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Update path index if path changed
		if oldAlbum.Path != album.Path {
			oldPathKey := []byte(albumByPathPrefix + oldAlbum.Path)
			if err := txn.Delete(oldPathKey); err != nil {
				return err
			}

			newPathKey := []byte(albumByPathPrefix + album.Path)
			if err := txn.Set(newPathKey, []byte(album.ID)); err != nil {
				return err
			}
		}

		// Update status index if status changed
		if oldAlbum.Status != album.Status {
			if err := txn.Delete(statusIndexKey(oldAlbum.Status, album.ID)); err != nil {
				return err
			}
			if err := txn.Set(statusIndexKey(album.Status, album.ID), []byte{}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("album updated", "id", album.ID, "title", album.Title, "status", album.Status)
	}

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(sse.NewAlbumUpdatedEvent(album))
	}

	s.indexAlbumAsync(album)
	return nil
}

// DeleteAlbum deletes an album along with its indices and match candidates
func (s *Store) DeleteAlbum(ctx context.Context, id string) error {
	album, err := s.GetAlbum(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		// Delete album
		key := []byte(albumPrefix + id)
		if err := txn.Delete(key); err != nil {
			return err
		}

		// Delete path index
		pathKey := []byte(albumByPathPrefix + album.Path)
		if err := txn.Delete(pathKey); err != nil {
			return err
		}

		// Delete status index
		if err := txn.Delete(statusIndexKey(album.Status, id)); err != nil {
			return err
		}

		// Delete match candidates
		return s.deleteCandidatesInTxn(txn, id)
	})
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("album deleted", "id", id, "title", album.Title)
	}

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(sse.NewAlbumDeletedEvent(id, time.Now()))
	}

	if s.searchIndexer != nil {
		go func() {
			if err := s.searchIndexer.DeleteAlbum(context.Background(), id); err != nil && s.logger != nil {
				s.logger.Warn("failed to remove album from search index", "id", id, "error", err)
			}
		}()
	}

	return nil
}

// AlbumExists checks if an album exists in our db by ID
func (s *Store) AlbumExists(ctx context.Context, id string) (bool, error) {
	key := buildKey(albumPrefix, id)
	defer releaseKey(key)
	return s.exists(key)
}

// AlbumExistsByPath checks if an album exists for the given folder path
func (s *Store) AlbumExistsByPath(ctx context.Context, path string) (bool, error) {
	key := buildKey(albumByPathPrefix, path)
	defer releaseKey(key)
	return s.exists(key)
}

func (s *Store) ListAlbums(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Album], error) {
	params.Validate()

	var albums []*domain.Album
	var hasMore bool

	prefix := []byte(albumPrefix)

	// Decode cursor to get starting key
	startKey, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = params.Limit + 1 // We fetch one extra to check if there's more items.

		it := txn.NewIterator(opts)
		defer it.Close()

		// Start from cursor or beginning
		if startKey != "" {
			it.Seek([]byte(startKey))
			// Skip the cursor key itself (we've already returned it)
			if it.Valid() && string(it.Item().Key()) == startKey {
				it.Next()
			}
		} else {
			it.Seek(prefix)
		}

		// Collect items up to limit + 1
		count := 0
		for ; it.ValidForPrefix(prefix) && count <= params.Limit; it.Next() {
			// If we've hit limit + 1, we know there are more items
			if count == params.Limit {
				hasMore = true
				break
			}

			err := it.Item().Value(func(val []byte) error {
				var album domain.Album
				if err := json.Unmarshal(val, &album); err != nil {
					return err
				}

				albums = append(albums, &album)
				return nil
			})
			if err != nil {
				return err
			}

			count++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}

	result := &PaginatedResult[*domain.Album]{
		Items:   albums,
		HasMore: hasMore,
	}

	// Set next cursor if there are more results
	if hasMore && len(albums) > 0 {
		result.NextCursor = EncodeCursor(albumPrefix + albums[len(albums)-1].ID)
	}

	return result, nil
}

// ListAllAlbums returns all albums (non-paginated).
// Used by the scanner to reconcile the library against the filesystem, and by
// the search service to rebuild the index. Most callers want ListAlbums instead.
func (s *Store) ListAllAlbums(ctx context.Context) ([]*domain.Album, error) {
	var albums []*domain.Album

	prefix := []byte(albumPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var album domain.Album
				if err := json.Unmarshal(val, &album); err != nil {
					return err
				}
				albums = append(albums, &album)
				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list all albums: %w", err)
	}

	return albums, nil
}

// ListAlbumsByStatus returns all albums currently in the given pipeline status.
// Uses the key-only status index, so only matching albums are loaded.
func (s *Store) ListAlbumsByStatus(ctx context.Context, status domain.AlbumStatus) ([]*domain.Album, error) {
	indexPrefix := buildIndexKey(albumPrefix, "status", string(status)+":")
	defer releaseKey(indexPrefix)

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Key-only index, no values to fetch
		opts.Prefix = indexPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(indexPrefix); it.ValidForPrefix(indexPrefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, key[len(indexPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list albums by status: %w", err)
	}

	albums := make([]*domain.Album, 0, len(ids))
	for _, id := range ids {
		album, err := s.GetAlbum(ctx, id)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("status index references missing album", "id", id, "status", status)
			}
			continue
		}
		albums = append(albums, album)
	}

	return albums, nil
}

// CountAlbumsByStatus returns the number of albums per pipeline status.
// Iterates the key-only status index, so no album values are loaded.
func (s *Store) CountAlbumsByStatus(ctx context.Context) (map[domain.AlbumStatus]int, error) {
	counts := make(map[domain.AlbumStatus]int)
	prefix := []byte(albumByStatusPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// Key format: album:idx:status:{status}:{id}
			remainder := string(it.Item().Key())[len(prefix):]
			status, _, ok := strings.Cut(remainder, ":")
			if !ok {
				continue
			}
			counts[domain.AlbumStatus(status)]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count albums by status: %w", err)
	}

	return counts, nil
}

// indexAlbumAsync pushes an album into the search index without blocking the caller.
func (s *Store) indexAlbumAsync(album *domain.Album) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.IndexAlbum(context.Background(), album); err != nil && s.logger != nil {
			s.logger.Warn("failed to index album", "id", album.ID, "error", err)
		}
	}()
}
