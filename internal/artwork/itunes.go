package artwork

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	itunesSearchURL  = "https://itunes.apple.com/search"
	itunesLimit      = 5
	itunesMinOverlap = 0.3
)

// itunesSizePattern matches iTunes artwork size suffixes like "100x100bb.jpg".
var itunesSizePattern = regexp.MustCompile(`/\d+x\d+bb\.jpg$`)

// maxCoverURL rewrites an iTunes artwork URL to request high resolution.
// iTunes serves the largest size it has at or below the requested one.
func maxCoverURL(u string) string {
	if u == "" {
		return ""
	}
	return itunesSizePattern.ReplaceAllString(u, "/1400x1400bb.jpg")
}

// itunesSource finds covers through the iTunes Search API. No API key is
// needed; Apple asks for roughly 20 requests per minute.
type itunesSource struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     *slog.Logger
}

func newITunesSource(logger *slog.Logger) *itunesSource {
	return &itunesSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// 20 requests per minute, small burst for back-to-back albums.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 5),
		baseURL: itunesSearchURL,
		logger:  logger,
	}
}

func (*itunesSource) Name() string { return "itunes" }

type itunesResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtistName     string `json:"artistName"`
	CollectionName string `json:"collectionName"`
	ArtworkURL100  string `json:"artworkUrl100"`
}

func (s *itunesSource) Fetch(ctx context.Context, q Query) (*Cover, error) {
	if q.Artist == "" && q.Album == "" {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("term", strings.TrimSpace(q.Artist+" "+q.Album))
	params.Set("media", "music")
	params.Set("entity", "album")
	params.Set("limit", fmt.Sprintf("%d", itunesLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var searchResp itunesResponse
	if err := json.UnmarshalRead(resp.Body, &searchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	// Results come back fuzzy; score each against the wanted album and
	// only accept covers that plausibly belong to it.
	type scored struct {
		score  float64
		result itunesResult
	}
	ranked := make([]scored, 0, len(searchResp.Results))
	for _, r := range searchResp.Results {
		score := wordOverlap(q.Artist, r.ArtistName)*0.5 + wordOverlap(q.Album, r.CollectionName)*0.5
		ranked = append(ranked, scored{score: score, result: r})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	for _, c := range ranked {
		if c.score < itunesMinOverlap {
			break
		}
		if c.result.ArtworkURL100 == "" {
			continue
		}
		data, err := s.download(ctx, maxCoverURL(c.result.ArtworkURL100))
		if err != nil {
			s.logger.Debug("itunes cover download failed",
				slog.String("album", c.result.CollectionName),
				slog.Any("error", err),
			)
			continue
		}
		s.logger.Debug("itunes cover matched",
			slog.String("wanted", q.Artist+" - "+q.Album),
			slog.String("got", c.result.ArtistName+" - "+c.result.CollectionName),
			slog.Float64("score", c.score),
		)
		return &Cover{Data: data, MIME: "image/jpeg"}, nil
	}
	return nil, nil
}

func (s *itunesSource) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return data, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)

// wordOverlap is the word-set overlap ratio of two titles, 0 to 1.
func wordOverlap(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), " ")
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
