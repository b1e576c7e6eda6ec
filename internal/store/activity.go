package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/musictaggerz/tagger-server/internal/domain"
)

// Activity storage key prefixes.
// Uses inverted timestamps for descending order (newest first) during forward iteration.
const (
	activityPrefix         = "activity:"
	activityIdxTimePrefix  = "activity:idx:time:"
	activityIdxAlbumPrefix = "activity:idx:album:"
)

// invertedTimestamp returns a string that sorts in descending order.
// Uses MaxInt64 - UnixNano to ensure newest timestamps come first during forward iteration.
func invertedTimestamp(t time.Time) string {
	inverted := math.MaxInt64 - t.UnixNano()
	return fmt.Sprintf("%019d", inverted)
}

// CreateActivity stores a new activity with all indexes in a single transaction.
func (s *Store) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshaling activity: %w", err)
	}

	invertedTS := invertedTimestamp(activity.CreatedAt)

	return s.db.Update(func(txn *badger.Txn) error {
		// Primary key: activity:{id} → Activity JSON
		primaryKey := []byte(activityPrefix + activity.ID)
		if err := txn.Set(primaryKey, data); err != nil {
			return fmt.Errorf("setting primary key: %w", err)
		}

		// Time index: activity:idx:time:{inverted_timestamp}:{id} → "" (key-only)
		// This allows scanning newest-first without reverse iteration
		timeKey := []byte(activityIdxTimePrefix + invertedTS + ":" + activity.ID)
		if err := txn.Set(timeKey, []byte{}); err != nil {
			return fmt.Errorf("setting time index: %w", err)
		}

		// Album index (only for album-related activities)
		if activity.AlbumID != "" {
			albumKey := []byte(activityIdxAlbumPrefix + activity.AlbumID + ":" + invertedTS + ":" + activity.ID)
			if err := txn.Set(albumKey, []byte{}); err != nil {
				return fmt.Errorf("setting album index: %w", err)
			}
		}

		return nil
	})
}

// GetActivity retrieves a single activity by ID.
func (s *Store) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var activity domain.Activity
	err := s.get([]byte(activityPrefix+id), &activity)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting activity %s: %w", id, err)
	}

	return &activity, nil
}

// GetActivityFeed retrieves the global activity feed sorted by CreatedAt descending.
// Use 'before' for cursor-based pagination (pass the CreatedAt of the last item from previous page).
// Returns up to 'limit' activities.
func (s *Store) GetActivityFeed(ctx context.Context, limit int, before *time.Time) ([]*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var activities []*domain.Activity

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Key-only index, no values to fetch
		opts.Prefix = []byte(activityIdxTimePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Determine seek position
		seekKey := []byte(activityIdxTimePrefix)
		if before != nil {
			// Start after the 'before' timestamp
			// We use inverted timestamp, so "after" means a larger inverted value
			seekKey = []byte(activityIdxTimePrefix + invertedTimestamp(*before))
		}

		for it.Seek(seekKey); it.ValidForPrefix([]byte(activityIdxTimePrefix)); it.Next() {
			if len(activities) >= limit {
				break
			}

			// Extract activity ID from key: activity:idx:time:{inverted_ts}:{id}
			key := string(it.Item().Key())
			activityID := extractActivityIDFromTimeKey(key)
			if activityID == "" {
				continue
			}

			activity, err := s.getActivityInTxn(txn, activityID)
			if err != nil {
				continue
			}

			// The seek can land on the cursor item itself; we want items strictly before it
			if before != nil && !activity.CreatedAt.Before(*before) {
				continue
			}

			activities = append(activities, activity)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("fetching activity feed: %w", err)
	}

	return activities, nil
}

// GetAlbumActivities retrieves activities for a specific album sorted by CreatedAt descending.
func (s *Store) GetAlbumActivities(ctx context.Context, albumID string, limit int) ([]*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var activities []*domain.Activity
	indexPrefix := []byte(activityIdxAlbumPrefix + albumID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = indexPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(indexPrefix); it.ValidForPrefix(indexPrefix); it.Next() {
			if len(activities) >= limit {
				break
			}

			// Extract activity ID from key
			key := string(it.Item().Key())
			activityID := extractActivityIDFromAlbumKey(key, albumID)
			if activityID == "" {
				continue
			}

			activity, err := s.getActivityInTxn(txn, activityID)
			if err != nil {
				continue
			}
			activities = append(activities, activity)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("fetching album activities: %w", err)
	}

	return activities, nil
}

// getActivityInTxn retrieves an activity within an existing transaction.
func (s *Store) getActivityInTxn(txn *badger.Txn, id string) (*domain.Activity, error) {
	item, err := txn.Get([]byte(activityPrefix + id))
	if err != nil {
		return nil, err
	}

	var activity domain.Activity
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &activity)
	})
	if err != nil {
		return nil, err
	}

	return &activity, nil
}

// extractActivityIDFromTimeKey extracts activity ID from time index key.
// Key format: activity:idx:time:{inverted_ts}:{id}.
func extractActivityIDFromTimeKey(key string) string {
	const prefix = activityIdxTimePrefix
	if len(key) <= len(prefix)+20 { // 19 digits + colon
		return ""
	}
	// Skip prefix and inverted timestamp (19 digits) and colon
	return key[len(prefix)+20:]
}

// extractActivityIDFromAlbumKey extracts activity ID from album index key.
// Key format: activity:idx:album:{albumId}:{inverted_ts}:{id}.
func extractActivityIDFromAlbumKey(key, albumID string) string {
	prefix := activityIdxAlbumPrefix + albumID + ":"
	if len(key) <= len(prefix)+20 {
		return ""
	}
	return key[len(prefix)+20:]
}
