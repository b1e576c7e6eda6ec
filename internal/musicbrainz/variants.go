package musicbrainz

import (
	"context"

	"github.com/musictaggerz/tagger-server/internal/normalize"
)

// searchVariants yields progressively looser album titles to search with:
// the raw title, then with disc and edition suffixes removed, then with
// every bracketed segment stripped. Duplicates collapse.
func searchVariants(album string) []string {
	variants := []string{album}

	cleaned := normalize.CleanEditionSuffix(normalize.CleanDiscSuffix(album))
	if cleaned != "" && cleaned != album {
		variants = append(variants, cleaned)
	}

	stripped := normalize.StripBrackets(album)
	if stripped != "" && stripped != album && stripped != cleaned {
		variants = append(variants, stripped)
	}

	return variants
}

// SearchWithVariants searches with each title variant in turn and returns
// the first non-empty result set. A search error aborts the sequence: the
// caller's retry policy owns transient failures.
func (c *Client) SearchWithVariants(ctx context.Context, artist, album string, limit int) ([]Release, error) {
	for _, variant := range searchVariants(album) {
		releases, err := c.SearchReleases(ctx, artist, variant, limit)
		if err != nil {
			return nil, err
		}
		if len(releases) > 0 {
			return releases, nil
		}
	}
	return nil, nil
}

// SearchDetailed searches with title variants and fetches full details for
// every hit, preserving search order. Releases whose lookup fails are
// skipped; the remaining candidates still score.
func (c *Client) SearchDetailed(ctx context.Context, artist, album string, limit int) ([]*Release, error) {
	summaries, err := c.SearchWithVariants(ctx, artist, album, limit)
	if err != nil {
		return nil, err
	}

	detailed := make([]*Release, 0, len(summaries))
	for i := range summaries {
		release, err := c.GetRelease(ctx, summaries[i].ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("release lookup failed",
				"release_id", summaries[i].ID,
				"error", err)
			continue
		}
		detailed = append(detailed, release)
	}

	return detailed, nil
}
