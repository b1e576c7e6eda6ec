package matcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
	"github.com/musictaggerz/tagger-server/internal/normalize"
)

// textSimilarity is the Jaccard similarity of the folded word sets.
func textSimilarity(a, b string) float64 {
	wordsA := normalize.WordSet(a)
	wordsB := normalize.WordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection

	return float64(intersection) / float64(union)
}

// scoreText scores the artist and album text match, 15 points each.
// The local album title is compared both raw and with disc/edition
// suffixes cleaned, keeping the better similarity.
func scoreText(album *domain.Album, release *musicbrainz.Release) (float64, []string) {
	artistSim := textSimilarity(album.Artist, release.Artist)

	albumSim := textSimilarity(album.Title, release.Title)
	cleaned := normalize.CleanEditionSuffix(normalize.CleanDiscSuffix(album.Title))
	if cleaned != album.Title {
		albumSim = max(albumSim, textSimilarity(cleaned, release.Title))
	}

	artistPts := artistSim * 15.0
	albumPts := albumSim * 15.0

	return artistPts + albumPts, []string{
		fmt.Sprintf("Artist similarity: %.0f%% (%.1f/15)", artistSim*100, artistPts),
		fmt.Sprintf("Album similarity: %.0f%% (%.1f/15)", albumSim*100, albumPts),
	}
}

// scoreTrackCount scores the track count match, max 20 points.
func scoreTrackCount(album *domain.Album, release *musicbrainz.Release) (float64, []string) {
	local, remote := album.TrackCount, release.TrackCount
	if local == 0 || remote == 0 {
		return 0, []string{"Track count unknown"}
	}

	diff := absInt(local - remote)
	switch {
	case diff == 0:
		return 20, []string{fmt.Sprintf("Track count exact match: %d", local)}
	case diff == 1:
		return 15, []string{fmt.Sprintf("Track count off by 1: local=%d vs remote=%d", local, remote)}
	case diff == 2:
		return 10, []string{fmt.Sprintf("Track count off by 2: local=%d vs remote=%d", local, remote)}
	case diff <= 4:
		return 5, []string{fmt.Sprintf("Track count off by %d: local=%d vs remote=%d", diff, local, remote)}
	default:
		return 0, []string{fmt.Sprintf("Track count mismatch: local=%d vs remote=%d", local, remote)}
	}
}

// scoreDurations scores the average per-track duration deviation, max 20
// points. Tracks pair up by playback order.
func scoreDurations(album *domain.Album, release *musicbrainz.Release) (float64, []string) {
	local := make([]domain.Track, 0, len(album.Tracks))
	for _, t := range album.Tracks {
		if t.Duration > 0 {
			local = append(local, t)
		}
	}
	sort.SliceStable(local, func(i, j int) bool {
		a, b := local[i], local[j]
		discA, discB := a.DiscNumber, b.DiscNumber
		if discA == 0 {
			discA = 1
		}
		if discB == 0 {
			discB = 1
		}
		if discA != discB {
			return discA < discB
		}
		return a.TrackNumber < b.TrackNumber
	})

	remote := make([]musicbrainz.Track, len(release.Tracks))
	copy(remote, release.Tracks)
	sort.SliceStable(remote, func(i, j int) bool {
		return remote[i].Position < remote[j].Position
	})

	if len(local) == 0 || len(remote) == 0 {
		return 0, []string{"No duration data available"}
	}

	pairs := min(len(local), len(remote))
	totalDeviation := 0.0
	matched := 0
	for i := range pairs {
		remoteDur := remote[i].DurationSeconds()
		if remoteDur > 0 {
			totalDeviation += math.Abs(local[i].Duration-remoteDur) / remoteDur
			matched++
		}
	}

	if matched == 0 {
		return 0, []string{"No duration comparisons possible"}
	}

	avgDeviation := totalDeviation / float64(matched)

	var score float64
	switch {
	case avgDeviation <= 0.02:
		score = 20
	case avgDeviation <= 0.05:
		score = 16
	case avgDeviation <= 0.10:
		score = 10
	case avgDeviation <= 0.20:
		score = 5
	default:
		score = 0
	}

	return score, []string{fmt.Sprintf(
		"Avg duration deviation: %.1f%% over %d tracks (%.0f/20)",
		avgDeviation*100, matched, score)}
}

// scoreMedia scores the release media format against the preference list,
// max 10 points. First preference scores 10, each later slot 2 fewer down
// to a floor of 6; formats off the list get 2, unknown is neutral 5.
func (s *Scorer) scoreMedia(release *musicbrainz.Release) (float64, []string) {
	if release.Media == "" {
		return 5, []string{"Media format unknown, neutral score"}
	}

	for idx, preferred := range s.cfg.PreferredMedia {
		if release.Media == preferred {
			pts := max(10.0-float64(idx)*2, 6)
			return pts, []string{fmt.Sprintf("Preferred media: %s (%.0f/10)", release.Media, pts)}
		}
	}

	return 2, []string{fmt.Sprintf("Non-preferred media: %s (2/10)", release.Media)}
}

// scoreCountry scores the release country against the preference list,
// max 10 points. Slots decay by 1.5 down to a floor of 5.
func (s *Scorer) scoreCountry(release *musicbrainz.Release) (float64, []string) {
	if release.Country == "" {
		return 5, []string{"Country unknown, neutral score"}
	}

	for idx, preferred := range s.cfg.PreferredCountries {
		if release.Country == preferred {
			pts := max(10.0-float64(idx)*1.5, 5)
			return pts, []string{fmt.Sprintf("Preferred country: %s (%.0f/10)", release.Country, pts)}
		}
	}

	return 2, []string{fmt.Sprintf("Non-preferred country: %s (2/10)", release.Country)}
}

// scoreYear scores the year match against the release group's original
// year when known, max 10 points.
func scoreYear(album *domain.Album, release *musicbrainz.Release) (float64, []string) {
	localYear := album.Year
	remoteYear := release.OriginalYear
	if remoteYear == 0 {
		remoteYear = release.Year
	}

	if localYear == 0 || remoteYear == 0 {
		return 5, []string{"Year unknown, neutral score"}
	}

	diff := absInt(localYear - remoteYear)
	switch {
	case diff == 0:
		return 10, []string{fmt.Sprintf("Year exact match: %d", remoteYear)}
	case diff == 1:
		return 8, []string{fmt.Sprintf("Year off by 1: local=%d vs remote=%d", localYear, remoteYear)}
	case diff <= 3:
		return 5, []string{fmt.Sprintf("Year off by %d: local=%d vs remote=%d", diff, localYear, remoteYear)}
	default:
		return 2, []string{fmt.Sprintf("Year mismatch: local=%d vs remote=%d", localYear, remoteYear)}
	}
}

// scorePenalties computes deductions. A single-disc local album matched to
// a release holding noticeably more tracks is penalized 15 points: that is
// usually a deluxe or multi-disc edition of a different shape.
func scorePenalties(album *domain.Album, release *musicbrainz.Release) (float64, []string) {
	discs := make(map[int]bool)
	for _, t := range album.Tracks {
		disc := t.DiscNumber
		if disc == 0 {
			disc = 1
		}
		discs[disc] = true
	}

	if len(discs) == 1 && release.TrackCount > album.TrackCount+5 {
		return 15, []string{fmt.Sprintf(
			"Multi-disc penalty: remote has %d tracks vs local %d (-15)",
			release.TrackCount, album.TrackCount)}
	}

	return 0, nil
}
