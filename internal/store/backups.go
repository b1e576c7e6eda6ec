package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/musictaggerz/tagger-server/internal/domain"
)

// Backup storage key prefixes. The album index uses inverted timestamps
// so forward iteration yields newest backups first, same as activities.
const (
	backupPrefix         = "backup:"
	backupIdxAlbumPrefix = "backup:idx:album:"
)

// CreateBackup stores a tag backup with its album index in one transaction.
func (s *Store) CreateBackup(ctx context.Context, backup *domain.TagBackup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("marshaling backup: %w", err)
	}

	invertedTS := invertedTimestamp(backup.CreatedAt)

	return s.db.Update(func(txn *badger.Txn) error {
		primaryKey := []byte(backupPrefix + backup.ID)
		if err := txn.Set(primaryKey, data); err != nil {
			return fmt.Errorf("setting primary key: %w", err)
		}

		// Album index: backup:idx:album:{albumId}:{inverted_ts}:{id} → "" (key-only)
		albumKey := []byte(backupIdxAlbumPrefix + backup.AlbumID + ":" + invertedTS + ":" + backup.ID)
		if err := txn.Set(albumKey, []byte{}); err != nil {
			return fmt.Errorf("setting album index: %w", err)
		}
		return nil
	})
}

// GetBackup retrieves a single backup by ID.
func (s *Store) GetBackup(ctx context.Context, id string) (*domain.TagBackup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var backup domain.TagBackup
	err := s.get([]byte(backupPrefix+id), &backup)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("backup %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting backup %s: %w", id, err)
	}
	return &backup, nil
}

// ListAlbumBackups retrieves an album's backups, newest first.
func (s *Store) ListAlbumBackups(ctx context.Context, albumID string, limit int) ([]*domain.TagBackup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var backups []*domain.TagBackup
	indexPrefix := []byte(backupIdxAlbumPrefix + albumID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = indexPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(indexPrefix); it.ValidForPrefix(indexPrefix); it.Next() {
			if limit > 0 && len(backups) >= limit {
				break
			}

			key := string(it.Item().Key())
			backupID := extractBackupIDFromAlbumKey(key, albumID)
			if backupID == "" {
				continue
			}

			item, err := txn.Get([]byte(backupPrefix + backupID))
			if err != nil {
				continue
			}
			var backup domain.TagBackup
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &backup)
			}); err != nil {
				continue
			}
			backups = append(backups, &backup)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing backups for album %s: %w", albumID, err)
	}
	return backups, nil
}

// DeleteBackup removes a backup and its album index entry.
func (s *Store) DeleteBackup(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	backup, err := s.GetBackup(ctx, id)
	if err != nil {
		return err
	}
	return s.deleteBackup(backup)
}

// PruneBackups keeps the newest `keep` backups of an album and deletes
// the rest. Returns how many were dropped.
func (s *Store) PruneBackups(ctx context.Context, albumID string, keep int) (int, error) {
	backups, err := s.ListAlbumBackups(ctx, albumID, 0)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	dropped := 0
	for _, backup := range backups[keep:] {
		if err := s.deleteBackup(backup); err != nil {
			return dropped, err
		}
		dropped++
	}
	return dropped, nil
}

func (s *Store) deleteBackup(backup *domain.TagBackup) error {
	invertedTS := invertedTimestamp(backup.CreatedAt)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(backupPrefix + backup.ID)); err != nil {
			return fmt.Errorf("deleting primary key: %w", err)
		}
		albumKey := []byte(backupIdxAlbumPrefix + backup.AlbumID + ":" + invertedTS + ":" + backup.ID)
		if err := txn.Delete(albumKey); err != nil {
			return fmt.Errorf("deleting album index: %w", err)
		}
		return nil
	})
}

// extractBackupIDFromAlbumKey extracts the backup ID from an album index key.
// Key format: backup:idx:album:{albumId}:{inverted_ts}:{id}.
func extractBackupIDFromAlbumKey(key, albumID string) string {
	prefix := backupIdxAlbumPrefix + albumID + ":"
	if len(key) <= len(prefix)+20 {
		return ""
	}
	return key[len(prefix)+20:]
}
