package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
)

func testConfig() config.MatchingConfig {
	return config.MatchingConfig{
		AutoTagThreshold:   85,
		ReviewThreshold:    50,
		PreferredCountries: []string{"US", "GB", "DE", "IT"},
		PreferredMedia:     []string{"Digital Media", "CD"},
		MaxRetries:         3,
	}
}

func newTestScorer() *Scorer {
	return NewScorer(testConfig())
}

// testAlbum builds a single-disc album with the given track durations in
// seconds.
func testAlbum(artist, title string, year int, durations ...float64) *domain.Album {
	album := &domain.Album{
		Artist: artist,
		Title:  title,
		Year:   year,
	}
	for i, d := range durations {
		album.Tracks = append(album.Tracks, domain.Track{
			TrackNumber: i + 1,
			DiscNumber:  1,
			Duration:    d,
		})
	}
	album.RecalculateTotals()
	return album
}

// testRelease mirrors the album's shape exactly.
func testRelease(id, artist, title string, year int, durations ...float64) *musicbrainz.Release {
	release := &musicbrainz.Release{
		ID:           id,
		Artist:       artist,
		Title:        title,
		Year:         year,
		OriginalYear: year,
		TrackCount:   len(durations),
		Country:      "US",
		Media:        "Digital Media",
	}
	for i, d := range durations {
		release.Tracks = append(release.Tracks, musicbrainz.Track{
			Position:   i + 1,
			DurationMS: int(d * 1000),
		})
	}
	return release
}

func TestScore_PerfectMatch(t *testing.T) {
	album := testAlbum("Portishead", "Dummy", 1994, 306, 255, 237)
	release := testRelease("rel-1", "Portishead", "Dummy", 1994, 306, 255, 237)

	got := newTestScorer().Score(album, release)

	assert.Equal(t, 30.0, got.Text)
	assert.Equal(t, 20.0, got.TrackCount)
	assert.Equal(t, 20.0, got.Duration)
	assert.Equal(t, 10.0, got.Media)
	assert.Equal(t, 10.0, got.Country)
	assert.Equal(t, 10.0, got.Year)
	assert.Equal(t, 0.0, got.Penalty)
	assert.Equal(t, 100.0, got.Total)
	assert.NotEmpty(t, got.Details)
}

func TestScore_ClampsToHundred(t *testing.T) {
	album := testAlbum("Portishead", "Dummy", 1994, 306)
	release := testRelease("rel-1", "Portishead", "Dummy", 1994, 306)

	got := newTestScorer().Score(album, release)
	assert.LessOrEqual(t, got.Total, 100.0)
	assert.GreaterOrEqual(t, got.Total, 0.0)
}

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, textSimilarity("Massive Attack", "Massive Attack"))
	assert.Equal(t, 1.0, textSimilarity("Björk", "bjork"), "diacritics fold")
	assert.Equal(t, 0.0, textSimilarity("", "Something"))
	assert.InDelta(t, 1.0/3.0, textSimilarity("Blue Lines", "Blue Notes"), 0.001)
}

func TestScoreText_CleanedTitleWins(t *testing.T) {
	album := testAlbum("Radiohead", "OK Computer (Deluxe Edition)", 1997, 240)
	release := testRelease("rel-1", "Radiohead", "OK Computer", 1997, 240)

	got := newTestScorer().Score(album, release)
	assert.Equal(t, 30.0, got.Text, "cleaned title comparison must win")
}

func TestScoreTrackCount_Curve(t *testing.T) {
	tests := []struct {
		local, remote int
		want          float64
	}{
		{11, 11, 20},
		{11, 12, 15},
		{11, 9, 10},
		{11, 14, 5},
		{11, 15, 5},
		{11, 16, 0},
		{0, 11, 0},
		{11, 0, 0},
	}
	for _, tt := range tests {
		album := &domain.Album{TrackCount: tt.local}
		release := &musicbrainz.Release{TrackCount: tt.remote}
		got, _ := scoreTrackCount(album, release)
		assert.Equal(t, tt.want, got, "local=%d remote=%d", tt.local, tt.remote)
	}
}

func TestScoreDurations_Curve(t *testing.T) {
	tests := []struct {
		deviation float64
		want      float64
	}{
		{0.00, 20},
		{0.019, 20},
		{0.04, 16},
		{0.08, 10},
		{0.15, 5},
		{0.30, 0},
	}
	for _, tt := range tests {
		album := testAlbum("A", "B", 0, 100*(1+tt.deviation))
		release := testRelease("rel-1", "A", "B", 0, 100)
		got, _ := scoreDurations(album, release)
		assert.Equal(t, tt.want, got, "deviation %.2f", tt.deviation)
	}
}

func TestScoreDurations_PairsAcrossDiscs(t *testing.T) {
	album := &domain.Album{Tracks: []domain.Track{
		{TrackNumber: 1, DiscNumber: 2, Duration: 300},
		{TrackNumber: 1, DiscNumber: 1, Duration: 100},
		{TrackNumber: 2, DiscNumber: 1, Duration: 200},
	}}
	release := &musicbrainz.Release{Tracks: []musicbrainz.Track{
		{Position: 1, DurationMS: 100000},
		{Position: 2, DurationMS: 200000},
		{Position: 3, DurationMS: 300000},
	}}

	got, _ := scoreDurations(album, release)
	assert.Equal(t, 20.0, got, "tracks pair in playback order across discs")
}

func TestScoreDurations_NoData(t *testing.T) {
	got, _ := scoreDurations(&domain.Album{}, &musicbrainz.Release{})
	assert.Equal(t, 0.0, got)
}

func TestScoreMedia(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		media string
		want  float64
	}{
		{"Digital Media", 10},
		{"CD", 8},
		{"7\" Vinyl", 2},
		{"", 5},
	}
	for _, tt := range tests {
		got, _ := s.scoreMedia(&musicbrainz.Release{Media: tt.media})
		assert.Equal(t, tt.want, got, "media %q", tt.media)
	}
}

func TestScoreMedia_Floor(t *testing.T) {
	s := NewScorer(config.MatchingConfig{
		PreferredMedia: []string{"A", "B", "C", "D"},
	})
	got, _ := s.scoreMedia(&musicbrainz.Release{Media: "D"})
	assert.Equal(t, 6.0, got, "preferred media never drops below 6")
}

func TestScoreCountry(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		country string
		want    float64
	}{
		{"US", 10},
		{"GB", 8.5},
		{"DE", 7},
		{"IT", 5.5},
		{"JP", 2},
		{"", 5},
	}
	for _, tt := range tests {
		got, _ := s.scoreCountry(&musicbrainz.Release{Country: tt.country})
		assert.Equal(t, tt.want, got, "country %q", tt.country)
	}
}

func TestScoreCountry_Floor(t *testing.T) {
	s := NewScorer(config.MatchingConfig{
		PreferredCountries: []string{"A", "B", "C", "D", "E"},
	})
	got, _ := s.scoreCountry(&musicbrainz.Release{Country: "E"})
	assert.Equal(t, 5.0, got, "preferred country never drops below 5")
}

func TestScoreYear_Curve(t *testing.T) {
	tests := []struct {
		local, remote int
		want          float64
	}{
		{1994, 1994, 10},
		{1994, 1995, 8},
		{1994, 1997, 5},
		{1994, 2000, 2},
		{0, 1994, 5},
		{1994, 0, 5},
	}
	for _, tt := range tests {
		album := &domain.Album{Year: tt.local}
		release := &musicbrainz.Release{OriginalYear: tt.remote}
		got, _ := scoreYear(album, release)
		assert.Equal(t, tt.want, got, "local=%d remote=%d", tt.local, tt.remote)
	}
}

func TestScoreYear_PrefersOriginalYear(t *testing.T) {
	album := &domain.Album{Year: 1979}
	release := &musicbrainz.Release{Year: 2011, OriginalYear: 1979}

	got, _ := scoreYear(album, release)
	assert.Equal(t, 10.0, got, "remaster year must not hide the original")
}

func TestMultiDiscPenalty(t *testing.T) {
	album := testAlbum("A", "B", 0, 100, 100, 100, 100, 100)
	release := &musicbrainz.Release{TrackCount: 11}

	got, _ := scorePenalties(album, release)
	assert.Equal(t, 15.0, got)

	// Local multi-disc albums are exempt.
	album.Tracks[0].DiscNumber = 2
	got, _ = scorePenalties(album, release)
	assert.Equal(t, 0.0, got)

	// Close track counts are exempt.
	got, _ = scorePenalties(testAlbum("A", "B", 0, 100, 100, 100, 100, 100),
		&musicbrainz.Release{TrackCount: 10})
	assert.Equal(t, 0.0, got)
}

func TestScoreAll_FiltersWildTrackCounts(t *testing.T) {
	album := testAlbum("Portishead", "Dummy", 1994, 306, 255)

	scored := newTestScorer().ScoreAll(album, []*musicbrainz.Release{
		testRelease("rel-keep", "Portishead", "Dummy", 1994, 306, 255),
		{ID: "rel-drop", TrackCount: 5},
		{ID: "rel-unknown-count"},
	})

	ids := make([]string, 0, len(scored))
	for _, m := range scored {
		ids = append(ids, m.Release.ID)
	}
	assert.Equal(t, []string{"rel-keep", "rel-unknown-count"}, ids)
}

func TestScoreAll_TieBreaksOnPreferencePoints(t *testing.T) {
	album := testAlbum("Portishead", "Dummy", 1994, 306)

	// Same totals: media 8 + year 10 versus media 10 + year 8.
	cdExact := testRelease("rel-cd", "Portishead", "Dummy", 1994, 306)
	cdExact.Media = "CD"

	digitalOffByOne := testRelease("rel-digital", "Portishead", "Dummy", 1995, 306)

	scored := newTestScorer().ScoreAll(album, []*musicbrainz.Release{cdExact, digitalOffByOne})
	require.Len(t, scored, 2)
	require.Equal(t, scored[0].Total, scored[1].Total, "setup must produce a tie")
	assert.Equal(t, "rel-digital", scored[0].Release.ID, "higher media+country points win the tie")
}

func TestScoreAll_TieBreaksOnReleaseID(t *testing.T) {
	album := testAlbum("Portishead", "Dummy", 1994, 306)

	scored := newTestScorer().ScoreAll(album, []*musicbrainz.Release{
		testRelease("rel-b", "Portishead", "Dummy", 1994, 306),
		testRelease("rel-a", "Portishead", "Dummy", 1994, 306),
	})
	require.Len(t, scored, 2)
	assert.Equal(t, "rel-a", scored[0].Release.ID)
}

func TestDecide(t *testing.T) {
	s := newTestScorer()

	assert.Equal(t, DecisionAutoTag, s.Decide(100))
	assert.Equal(t, DecisionAutoTag, s.Decide(85))
	assert.Equal(t, DecisionNeedsReview, s.Decide(84.9))
	assert.Equal(t, DecisionNeedsReview, s.Decide(50), "review threshold is inclusive")
	assert.Equal(t, DecisionSkip, s.Decide(49.9))
	assert.Equal(t, DecisionSkip, s.Decide(0))
}
