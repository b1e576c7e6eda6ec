package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Filters
	Statuses []string // Filter by exact pipeline statuses
	Genres   []string // Filter by exact genres
	MinYear  int      // Minimum release year
	MaxYear  int      // Maximum release year

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "title", "artist", "recent", "year"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool // Include status/genre facet counts in results
	Highlight     bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Artist     string            `json:"artist"`
	Title      string            `json:"title"`
	Label      string            `json:"label,omitempty"`
	Path       string            `json:"path,omitempty"`
	Status     string            `json:"status"`
	Year       int               `json:"year,omitempty"`
	TrackCount int               `json:"track_count,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Statuses []FacetCount `json:"statuses,omitempty"`
	Genres   []FacetCount `json:"genres,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("status", bleve.NewFacetRequest("status", 10))
		searchRequest.AddFacet("genres", bleve.NewFacetRequest("genres", 20))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("artist")
		searchRequest.Highlight.AddField("title")
	}

	// Request stored fields
	searchRequest.Fields = []string{
		"id", "artist", "title", "label", "path", "status", "year", "track_count",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		// Extract stored fields
		if a, ok := hit.Fields["artist"].(string); ok {
			searchHit.Artist = a
		}
		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if l, ok := hit.Fields["label"].(string); ok {
			searchHit.Label = l
		}
		if p, ok := hit.Fields["path"].(string); ok {
			searchHit.Path = p
		}
		if st, ok := hit.Fields["status"].(string); ok {
			searchHit.Status = st
		}
		if y, ok := hit.Fields["year"].(float64); ok {
			searchHit.Year = int(y)
		}
		if tc, ok := hit.Fields["track_count"].(float64); ok {
			searchHit.TrackCount = int(tc)
		}

		// Extract highlights
		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Main text query across artist and title, with typo tolerance and
	// a prefix query so partial input still finds the album.
	if params.Query != "" {
		textQueries := []query.Query{}

		artistMatch := bleve.NewMatchQuery(params.Query)
		artistMatch.SetField("artist")
		artistMatch.SetBoost(2.0)
		textQueries = append(textQueries, artistMatch)

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		labelMatch := bleve.NewMatchQuery(params.Query)
		labelMatch.SetField("label")
		labelMatch.SetBoost(0.5)
		textQueries = append(textQueries, labelMatch)

		// Fuzzy matching for typo tolerance on title
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		// Combine with OR (match any field)
		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Status filter (exact match, OR across statuses)
	if len(params.Statuses) > 0 {
		statusQueries := make([]query.Query, len(params.Statuses))
		for i, st := range params.Statuses {
			sq := bleve.NewTermQuery(st)
			sq.SetField("status")
			statusQueries[i] = sq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(statusQueries...))
	}

	// Genre filter (exact match, OR across genres)
	if len(params.Genres) > 0 {
		genreQueries := make([]query.Query, len(params.Genres))
		for i, g := range params.Genres {
			gq := bleve.NewTermQuery(g)
			gq.SetField("genres")
			genreQueries[i] = gq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(genreQueries...))
	}

	// Year range filter
	if params.MinYear > 0 || params.MaxYear > 0 {
		min := float64(params.MinYear)
		max := float64(params.MaxYear)
		if params.MaxYear == 0 {
			max = 3000 // Far future
		}
		rangeQuery := bleve.NewNumericRangeQuery(&min, &max)
		rangeQuery.SetField("year")
		queries = append(queries, rangeQuery)
	}

	// Combine all queries with AND
	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "artist":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-artist", "-title"})
		} else {
			req.SortBy([]string{"artist", "title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	case "year":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"year"})
		} else {
			req.SortBy([]string{"-year"})
		}
	default:
		// Relevance (score) is default - Bleve handles this
		req.SortBy([]string{"-_score"})
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}

	if statusFacet, ok := result.Facets["status"]; ok {
		for _, term := range statusFacet.Terms.Terms() {
			facets.Statuses = append(facets.Statuses, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	if genreFacet, ok := result.Facets["genres"]; ok {
		for _, term := range genreFacet.Terms.Terms() {
			facets.Genres = append(facets.Genres, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	return facets
}
