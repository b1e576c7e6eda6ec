package store

import (
	"context"
	"testing"
	"time"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandidates(albumID string) []*domain.MatchCandidate {
	now := time.Now()
	return []*domain.MatchCandidate{
		{ID: "cand-1", AlbumID: albumID, ReleaseID: "rel-a", Confidence: 72, Title: "Album", Country: "US", CreatedAt: now},
		{ID: "cand-2", AlbumID: albumID, ReleaseID: "rel-b", Confidence: 95, Title: "Album", Country: "GB", CreatedAt: now},
		{ID: "cand-3", AlbumID: albumID, ReleaseID: "rel-c", Confidence: 88, Title: "Album", Country: "DE", CreatedAt: now},
	}
}

// TestReplaceCandidates tests storing and retrieving match candidates
func TestReplaceCandidates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	err := store.ReplaceCandidates(ctx, "alb-001", testCandidates("alb-001"))
	require.NoError(t, err)

	candidates, err := store.GetCandidates(ctx, "alb-001")
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	// Sorted by confidence descending
	assert.Equal(t, "rel-b", candidates[0].ReleaseID)
	assert.Equal(t, "rel-c", candidates[1].ReleaseID)
	assert.Equal(t, "rel-a", candidates[2].ReleaseID)
}

// TestReplaceCandidates_DropsStale tests that a second matching run replaces
// the previous candidate set entirely
func TestReplaceCandidates_DropsStale(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	err := store.ReplaceCandidates(ctx, "alb-001", testCandidates("alb-001"))
	require.NoError(t, err)

	// Second run finds only one candidate
	err = store.ReplaceCandidates(ctx, "alb-001", []*domain.MatchCandidate{
		{ID: "cand-9", AlbumID: "alb-001", ReleaseID: "rel-z", Confidence: 60},
	})
	require.NoError(t, err)

	candidates, err := store.GetCandidates(ctx, "alb-001")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "rel-z", candidates[0].ReleaseID)
}

// TestGetCandidates_Isolated tests that candidates are scoped per album
func TestGetCandidates_Isolated(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.ReplaceCandidates(ctx, "alb-001", testCandidates("alb-001")))
	require.NoError(t, store.ReplaceCandidates(ctx, "alb-002", testCandidates("alb-002")[:1]))

	candidates, err := store.GetCandidates(ctx, "alb-002")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

// TestSelectCandidate tests marking a candidate as the chosen release
func TestSelectCandidate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.ReplaceCandidates(ctx, "alb-001", testCandidates("alb-001")))

	selected, err := store.SelectCandidate(ctx, "alb-001", "rel-c")
	require.NoError(t, err)
	assert.Equal(t, "rel-c", selected.ReleaseID)

	candidates, err := store.GetCandidates(ctx, "alb-001")
	require.NoError(t, err)
	for _, c := range candidates {
		assert.Equal(t, c.ReleaseID == "rel-c", c.IsSelected)
	}

	// Selecting a different candidate clears the previous flag
	_, err = store.SelectCandidate(ctx, "alb-001", "rel-a")
	require.NoError(t, err)

	candidates, err = store.GetCandidates(ctx, "alb-001")
	require.NoError(t, err)
	for _, c := range candidates {
		assert.Equal(t, c.ReleaseID == "rel-a", c.IsSelected)
	}
}

// TestSelectCandidate_NotFound tests selecting a release that isn't a candidate
func TestSelectCandidate_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.ReplaceCandidates(ctx, "alb-001", testCandidates("alb-001")))

	_, err := store.SelectCandidate(ctx, "alb-001", "rel-nope")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
