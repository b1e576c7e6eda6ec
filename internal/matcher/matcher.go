// Package matcher scores MusicBrainz releases against local album
// metadata. Scoring is pure: no I/O, no clock, fully deterministic for a
// given input, which keeps ranked candidate lists reproducible across
// retries.
package matcher

import (
	"sort"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
)

// Decision is the action a confidence score calls for.
type Decision string

const (
	// DecisionAutoTag tags the album without review.
	DecisionAutoTag Decision = "auto_tag"
	// DecisionNeedsReview holds the album for manual review.
	DecisionNeedsReview Decision = "needs_review"
	// DecisionSkip rejects the match outright.
	DecisionSkip Decision = "skip"
)

// MatchScore is one scored candidate release.
type MatchScore struct {
	Release    *musicbrainz.Release
	Total      float64
	Text       float64
	TrackCount float64
	Duration   float64
	Media      float64
	Country    float64
	Year       float64
	Penalty    float64
	Details    []string
}

// preferencePoints is the media plus country score, used as the tie-break
// between candidates with equal totals.
func (m *MatchScore) preferencePoints() float64 {
	return m.Media + m.Country
}

// Scorer ranks candidate releases for an album.
type Scorer struct {
	cfg config.MatchingConfig
}

func NewScorer(cfg config.MatchingConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score scores a single release against the local album.
func (s *Scorer) Score(album *domain.Album, release *musicbrainz.Release) MatchScore {
	match := MatchScore{Release: release}

	add := func(points float64, details []string) float64 {
		match.Details = append(match.Details, details...)
		return points
	}

	match.Text = add(scoreText(album, release))
	match.TrackCount = add(scoreTrackCount(album, release))
	match.Duration = add(scoreDurations(album, release))
	match.Media = add(s.scoreMedia(release))
	match.Country = add(s.scoreCountry(release))
	match.Year = add(scoreYear(album, release))
	match.Penalty = add(scorePenalties(album, release))

	match.Total = match.Text + match.TrackCount + match.Duration +
		match.Media + match.Country + match.Year - match.Penalty
	match.Total = max(0, min(100, match.Total))

	return match
}

// ScoreAll filters, scores and ranks candidate releases, best first.
// Candidates whose track count differs from the local count by more than
// the local count itself are dropped before scoring. Ordering is total
// score, then media+country preference points, then release ID, so equal
// candidates always rank the same way.
func (s *Scorer) ScoreAll(album *domain.Album, releases []*musicbrainz.Release) []MatchScore {
	scored := make([]MatchScore, 0, len(releases))
	for _, release := range releases {
		if release.TrackCount > 0 {
			diff := absInt(release.TrackCount - album.TrackCount)
			if diff > album.TrackCount {
				continue
			}
		}
		scored = append(scored, s.Score(album, release))
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := &scored[i], &scored[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.preferencePoints() != b.preferencePoints() {
			return a.preferencePoints() > b.preferencePoints()
		}
		return a.Release.ID < b.Release.ID
	})

	return scored
}

// Decide maps a confidence score to an action. At or above the auto
// threshold the album tags itself; at or above the review threshold it
// waits for review; below that the match is rejected.
func (s *Scorer) Decide(score float64) Decision {
	switch {
	case score >= s.cfg.AutoTagThreshold:
		return DecisionAutoTag
	case score >= s.cfg.ReviewThreshold:
		return DecisionNeedsReview
	default:
		return DecisionSkip
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
