package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumStatus_Valid(t *testing.T) {
	for _, s := range []AlbumStatus{StatusPending, StatusMatching, StatusTagged, StatusNeedsReview, StatusFailed, StatusSkipped} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}
	assert.False(t, AlbumStatus("unknown").Valid())
	assert.False(t, AlbumStatus("").Valid())
}

func TestAlbumStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusMatching.Terminal())
	assert.True(t, StatusTagged.Terminal())
	assert.True(t, StatusNeedsReview.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusSkipped.Terminal())
}

func TestAlbumStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from    AlbumStatus
		to      AlbumStatus
		allowed bool
	}{
		{StatusPending, StatusMatching, true},
		{StatusPending, StatusSkipped, true},
		{StatusPending, StatusTagged, false},
		{StatusPending, StatusNeedsReview, false},

		{StatusMatching, StatusTagged, true},
		{StatusMatching, StatusNeedsReview, true},
		{StatusMatching, StatusFailed, true},
		{StatusMatching, StatusSkipped, true},
		{StatusMatching, StatusPending, true}, // transient failure, requeued
		{StatusMatching, StatusMatching, false},

		{StatusTagged, StatusPending, true}, // force retag
		{StatusTagged, StatusSkipped, true},
		{StatusTagged, StatusNeedsReview, false},
		{StatusTagged, StatusFailed, false},

		{StatusNeedsReview, StatusPending, true}, // reviewer picked a release
		{StatusNeedsReview, StatusSkipped, true},
		{StatusNeedsReview, StatusTagged, false},
		{StatusNeedsReview, StatusMatching, false},

		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusSkipped, true},
		{StatusFailed, StatusTagged, false},

		{StatusSkipped, StatusPending, true}, // unskip
		{StatusSkipped, StatusMatching, false},
		{StatusSkipped, StatusTagged, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestAlbum_SetStatus(t *testing.T) {
	album := &Album{Status: StatusPending}

	require.NoError(t, album.SetStatus(StatusMatching))
	assert.Equal(t, StatusMatching, album.Status)

	require.NoError(t, album.SetStatus(StatusTagged))
	assert.Equal(t, StatusTagged, album.Status)
}

func TestAlbum_SetStatus_Invalid(t *testing.T) {
	album := &Album{Status: StatusPending}

	err := album.SetStatus(StatusTagged)
	require.Error(t, err)

	var invalid *ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPending, invalid.From)
	assert.Equal(t, StatusTagged, invalid.To)

	// Status unchanged after a rejected transition.
	assert.Equal(t, StatusPending, album.Status)
}

func TestAlbum_SetStatus_TouchesTimestamp(t *testing.T) {
	album := &Album{Status: StatusPending}
	album.InitTimestamps()
	before := album.UpdatedAt

	require.NoError(t, album.SetStatus(StatusMatching))
	assert.True(t, !album.UpdatedAt.Before(before))
}
