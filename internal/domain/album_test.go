package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlbum_UpdateTrack(t *testing.T) {
	album := &Album{}

	added := album.UpdateTrack(Track{Path: "/music/a/01.flac", Duration: 180})
	assert.False(t, added)
	assert.Len(t, album.Tracks, 1)

	updated := album.UpdateTrack(Track{Path: "/music/a/01.flac", Duration: 200})
	assert.True(t, updated)
	assert.Len(t, album.Tracks, 1)
	assert.Equal(t, 200.0, album.Tracks[0].Duration)
}

func TestAlbum_RemoveTrackByPath(t *testing.T) {
	album := &Album{
		Tracks: []Track{
			{Path: "/music/a/01.flac"},
			{Path: "/music/a/02.flac"},
		},
	}

	assert.True(t, album.RemoveTrackByPath("/music/a/01.flac"))
	assert.Len(t, album.Tracks, 1)
	assert.Equal(t, "/music/a/02.flac", album.Tracks[0].Path)

	assert.False(t, album.RemoveTrackByPath("/music/a/99.flac"))
}

func TestAlbum_RecalculateTotals(t *testing.T) {
	album := &Album{
		Tracks: []Track{
			{Path: "a", Duration: 180.5},
			{Path: "b", Duration: 219.5},
		},
	}

	album.RecalculateTotals()

	assert.Equal(t, 2, album.TrackCount)
	assert.Equal(t, 400.0, album.TotalDuration)
}

func TestAlbum_TrackDurations(t *testing.T) {
	album := &Album{
		Tracks: []Track{
			{Path: "a", Duration: 100},
			{Path: "b", Duration: 200},
			{Path: "c", Duration: 300},
		},
	}

	assert.Equal(t, []float64{100, 200, 300}, album.TrackDurations())
}

func TestAlbum_SetError(t *testing.T) {
	album := &Album{}

	album.SetError("search timed out")
	assert.Equal(t, "search timed out", album.ErrorMessage)
	assert.Equal(t, 1, album.RetryCount)

	album.SetError("search timed out again")
	assert.Equal(t, 2, album.RetryCount)

	album.ClearError()
	assert.Empty(t, album.ErrorMessage)
	assert.Equal(t, 2, album.RetryCount) // retry count survives a clear
}

func TestAlbum_DisplayName(t *testing.T) {
	album := &Album{Artist: "Boards of Canada", Title: "Geogaddi"}
	assert.Equal(t, "Boards of Canada - Geogaddi", album.DisplayName())

	album.Artist = ""
	assert.Equal(t, "Geogaddi", album.DisplayName())
}
