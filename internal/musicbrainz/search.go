package musicbrainz

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// luceneEscaper escapes characters with meaning inside a quoted Lucene
// phrase.
var luceneEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// SearchReleases searches for releases matching artist and album text.
// Results carry summary fields only; use GetRelease for tracklists.
func (c *Client) SearchReleases(ctx context.Context, artist, album string, limit int) ([]Release, error) {
	if artist == "" && album == "" {
		return nil, wrapError("search", "", ErrBadRequest)
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var terms []string
	if artist != "" {
		terms = append(terms, fmt.Sprintf(`artist:"%s"`, luceneEscaper.Replace(artist)))
	}
	if album != "" {
		terms = append(terms, fmt.Sprintf(`release:"%s"`, luceneEscaper.Replace(album)))
	}
	searchQuery := strings.Join(terms, " AND ")

	query := url.Values{}
	query.Set("query", searchQuery)
	query.Set("limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/release", query)
	if err != nil {
		return nil, wrapError("search", searchQuery, err)
	}

	var resp struct {
		Releases []rawSearchRelease `json:"releases"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("search", searchQuery, fmt.Errorf("parse response: %w", err))
	}

	releases := make([]Release, 0, len(resp.Releases))
	for i := range resp.Releases {
		releases = append(releases, resp.Releases[i].toRelease())
	}

	c.logger.Info("musicbrainz search",
		"artist", artist,
		"album", album,
		"results", len(releases))

	return releases, nil
}

type rawSearchRelease struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	ArtistCredit []rawArtistCredit `json:"artist-credit"`
	Date         string            `json:"date"`
	Country      string            `json:"country"`
	Barcode      string            `json:"barcode"`
	ReleaseGroup struct {
		ID string `json:"id"`
	} `json:"release-group"`
	Media []struct {
		Format     string `json:"format"`
		TrackCount int    `json:"track-count"`
	} `json:"media"`
	LabelInfo []rawLabelInfo `json:"label-info"`
}

func (r *rawSearchRelease) toRelease() Release {
	trackCount := 0
	media := ""
	for _, m := range r.Media {
		trackCount += m.TrackCount
		if media == "" {
			media = m.Format
		}
	}

	return Release{
		ID:             r.ID,
		Title:          r.Title,
		Artist:         joinArtistCredit(r.ArtistCredit),
		Year:           parseYear(r.Date),
		TrackCount:     trackCount,
		Country:        r.Country,
		Media:          media,
		Label:          firstLabel(r.LabelInfo),
		Barcode:        r.Barcode,
		ReleaseGroupID: r.ReleaseGroup.ID,
	}
}
