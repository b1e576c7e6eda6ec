package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/ratelimit"
)

const (
	defaultBaseURL   = "https://musicbrainz.org/ws/2"
	defaultUserAgent = "TaggerServer/1.0 (https://github.com/musictaggerz/tagger-server)"

	// MusicBrainz etiquette allows 1 request per second; stay slightly
	// under it.
	defaultMinInterval = 1100 * time.Millisecond

	defaultTimeout = 30 * time.Second

	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// limiterKey keys the process-global request spacing. All calls share it.
const limiterKey = "musicbrainz"

// Client is a rate-limited MusicBrainz API client.
type Client struct {
	http      *http.Client
	limiter   *ratelimit.KeyedRateLimiter
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

// New creates a new MusicBrainz client.
func New(cfg config.MusicBrainzConfig, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}

	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:   ratelimit.New(1.0/minInterval.Seconds(), 1),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		logger:    logger,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// doRequest executes an HTTP GET with rate limiting.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	query.Set("fmt", "json")
	fullURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("musicbrainz request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// Shared raw API response types.

type rawArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
}

type rawLabelInfo struct {
	Label struct {
		Name string `json:"name"`
	} `json:"label"`
}

// joinArtistCredit renders an artist credit list like
// "Massive Attack feat. Horace Andy".
func joinArtistCredit(credits []rawArtistCredit) string {
	var b strings.Builder
	for _, ac := range credits {
		b.WriteString(ac.Name)
		b.WriteString(ac.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

// parseYear extracts the year from a date like "1998-04-20" or "1998".
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, c := range date[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}

// firstLabel picks the first named label from a label-info list.
func firstLabel(infos []rawLabelInfo) string {
	for _, li := range infos {
		if li.Label.Name != "" {
			return li.Label.Name
		}
	}
	return ""
}
