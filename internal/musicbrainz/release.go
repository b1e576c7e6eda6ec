package musicbrainz

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/url"
)

// releaseIncludes lists the extra data fetched with a release lookup.
const releaseIncludes = "recordings+artist-credits+labels+release-groups+genres+tags"

// GetRelease retrieves full release details including the tracklist with
// durations, genres and the release group's original year.
func (c *Client) GetRelease(ctx context.Context, releaseID string) (*Release, error) {
	if releaseID == "" {
		return nil, wrapError("getRelease", releaseID, ErrBadRequest)
	}

	query := url.Values{}
	query.Set("inc", releaseIncludes)

	body, err := c.doRequest(ctx, "/release/"+url.PathEscape(releaseID), query)
	if err != nil {
		return nil, wrapError("getRelease", releaseID, err)
	}

	var raw rawRelease
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrapError("getRelease", releaseID, fmt.Errorf("parse response: %w", err))
	}

	release := raw.toRelease()
	return &release, nil
}

type rawRelease struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	ArtistCredit []rawArtistCredit `json:"artist-credit"`
	Date         string            `json:"date"`
	Country      string            `json:"country"`
	Barcode      string            `json:"barcode"`
	ReleaseGroup struct {
		ID               string       `json:"id"`
		FirstReleaseDate string       `json:"first-release-date"`
		Genres           []namedCount `json:"genres"`
		Tags             []namedCount `json:"tags"`
	} `json:"release-group"`
	Media []struct {
		Format     string `json:"format"`
		TrackCount int    `json:"track-count"`
		Tracks     []struct {
			Position  int    `json:"position"`
			Title     string `json:"title"`
			Length    int    `json:"length"`
			Recording struct {
				ID     string `json:"id"`
				Title  string `json:"title"`
				Length int    `json:"length"`
			} `json:"recording"`
		} `json:"tracks"`
	} `json:"media"`
	LabelInfo []rawLabelInfo `json:"label-info"`
	Genres    []namedCount   `json:"genres"`
	Tags      []namedCount   `json:"tags"`
}

func (r *rawRelease) toRelease() Release {
	release := Release{
		ID:             r.ID,
		Title:          r.Title,
		Artist:         joinArtistCredit(r.ArtistCredit),
		Year:           parseYear(r.Date),
		OriginalYear:   parseYear(r.ReleaseGroup.FirstReleaseDate),
		Country:        r.Country,
		Label:          firstLabel(r.LabelInfo),
		Barcode:        r.Barcode,
		ReleaseGroupID: r.ReleaseGroup.ID,
		Genres: collectGenres(
			[][]namedCount{r.Genres, r.ReleaseGroup.Genres},
			[][]namedCount{r.Tags, r.ReleaseGroup.Tags},
		),
	}

	// Positions run across discs: track 1 of disc 2 follows the last track
	// of disc 1.
	for _, medium := range r.Media {
		if release.Media == "" {
			release.Media = medium.Format
		}
		discOffset := release.TrackCount

		for _, t := range medium.Tracks {
			title := t.Recording.Title
			if title == "" {
				title = t.Title
			}
			durationMS := t.Length
			if durationMS == 0 {
				durationMS = t.Recording.Length
			}

			release.Tracks = append(release.Tracks, Track{
				Position:    discOffset + t.Position,
				Title:       title,
				DurationMS:  durationMS,
				RecordingID: t.Recording.ID,
			})
		}

		release.TrackCount += medium.TrackCount
	}

	return release
}
