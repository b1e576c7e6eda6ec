package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.Equal(t, 30*time.Second, opts.StabilizationDelay)
	assert.Equal(t, time.Minute, opts.PollInterval)
	assert.True(t, opts.IgnoreHidden)
	assert.NotEmpty(t, opts.IgnorePatterns)
}

func TestOptionsDefaultsKeepExplicitValues(t *testing.T) {
	opts := Options{
		StabilizationDelay: time.Second,
		PollInterval:       5 * time.Second,
		IgnorePatterns:     []string{},
	}
	opts.setDefaults()

	assert.Equal(t, time.Second, opts.StabilizationDelay)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.False(t, opts.IgnoreHidden, "explicit empty patterns leave hidden handling alone")
}

func TestShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	tests := []struct {
		path   string
		ignore bool
	}{
		{"/music/Artist/Album/01.flac", false},
		{"/music/Artist/Album/.DS_Store", true},
		{"/music/Artist/Album/cover.tmp", true},
		{"/music/Artist/Album/download.part", true},
		{"/music/.stversions/Album/01.flac", true},
		{"/music/Artist/.hidden.flac", true},
		{"/music/Artist/Album/Thumbs.db", true},
		{"/music/Artist/Album", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ignore, opts.shouldIgnore(tt.path), tt.path)
	}
}

func TestShouldIgnoreCustomPatterns(t *testing.T) {
	opts := Options{IgnorePatterns: []string{"*.log"}}
	opts.setDefaults()

	assert.True(t, opts.shouldIgnore("/music/debug.log"))
	assert.False(t, opts.shouldIgnore("/music/.hidden/01.flac"), "custom patterns disable hidden handling")
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "added", EventAdded.String())
	assert.Equal(t, "modified", EventModified.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
