package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/musictaggerz/tagger-server/internal/domain"
)

// candidatePrefix keys candidates by album so one prefix scan returns the
// full candidate list for an album.
// Key format: candidate:{albumID}:{candidateID}.
const candidatePrefix = "candidate:"

// ReplaceCandidates atomically replaces the stored match candidates for an album.
// Called after each matching run so stale candidates from earlier runs never linger.
func (s *Store) ReplaceCandidates(ctx context.Context, albumID string, candidates []*domain.MatchCandidate) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.deleteCandidatesInTxn(txn, albumID); err != nil {
			return err
		}

		for _, c := range candidates {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal candidate: %w", err)
			}

			key := []byte(candidatePrefix + albumID + ":" + c.ID)
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace candidates: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("candidates replaced", "album_id", albumID, "count", len(candidates))
	}
	return nil
}

// GetCandidates returns the stored match candidates for an album,
// sorted by confidence descending.
func (s *Store) GetCandidates(ctx context.Context, albumID string) ([]*domain.MatchCandidate, error) {
	var candidates []*domain.MatchCandidate
	prefix := []byte(candidatePrefix + albumID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var c domain.MatchCandidate
				if err := json.Unmarshal(val, &c); err != nil {
					return err
				}
				candidates = append(candidates, &c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get candidates: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates, nil
}

// SelectCandidate marks one candidate as selected and clears the flag on the rest.
// Returns the selected candidate, or ErrNotFound if no candidate has that release ID.
func (s *Store) SelectCandidate(ctx context.Context, albumID, releaseID string) (*domain.MatchCandidate, error) {
	candidates, err := s.GetCandidates(ctx, albumID)
	if err != nil {
		return nil, err
	}

	var selected *domain.MatchCandidate
	for _, c := range candidates {
		if c.ReleaseID == releaseID {
			selected = c
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("candidate %s for album %s: %w", releaseID, albumID, ErrNotFound)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, c := range candidates {
			c.IsSelected = c.ReleaseID == releaseID

			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal candidate: %w", err)
			}

			key := []byte(candidatePrefix + albumID + ":" + c.ID)
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("select candidate: %w", err)
	}

	return selected, nil
}

// deleteCandidatesInTxn removes all candidates for an album within an existing transaction.
func (s *Store) deleteCandidatesInTxn(txn *badger.Txn, albumID string) error {
	prefix := []byte(candidatePrefix + albumID + ":")

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
