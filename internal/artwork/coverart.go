package artwork

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	caaBaseURL = "https://coverartarchive.org"

	// maxCoverBytes caps downloads; Cover Art Archive serves originals
	// that can run to tens of megabytes.
	maxCoverBytes = 32 << 20
)

// coverArtSource fetches the front cover from the Cover Art Archive.
// Free, no API key, keyed directly by MusicBrainz release ID.
type coverArtSource struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func newCoverArtSource(logger *slog.Logger) *coverArtSource {
	return &coverArtSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    caaBaseURL,
		logger:     logger,
	}
}

func (*coverArtSource) Name() string { return "coverart" }

func (s *coverArtSource) Fetch(ctx context.Context, q Query) (*Cover, error) {
	if q.ReleaseID == "" {
		return nil, nil
	}

	url := fmt.Sprintf("%s/release/%s/front", s.baseURL, q.ReleaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cover: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the release simply has no cover art.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch cover: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	cover := &Cover{Data: data}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		cover.MIME = ct
	}
	return cover, nil
}
