package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/musictaggerz/tagger-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchAlbums",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search albums",
		Description: "Full-text search across artist, title, genres and track titles",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

type SearchInput struct {
	Query    string   `query:"q" required:"false" doc:"Query string, empty matches everything"`
	Statuses []string `query:"status" required:"false" doc:"Restrict to these pipeline statuses"`
	Genres   []string `query:"genre" required:"false" doc:"Restrict to these genres"`
	MinYear  int      `query:"min_year" required:"false"`
	MaxYear  int      `query:"max_year" required:"false"`
	Limit    int      `query:"limit" minimum:"1" maximum:"200" required:"false" doc:"Page size, default 20"`
	Offset   int      `query:"offset" minimum:"0" required:"false"`
	SortBy   string   `query:"sort" enum:"artist,title,year,added" required:"false" doc:"Sort field, default relevance"`
	Order    string   `query:"order" enum:"asc,desc" required:"false"`
	Facets   bool     `query:"facets" required:"false" doc:"Include status and genre facet counts"`
}

type SearchOutput struct {
	Body *search.SearchResult
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.SearchParams{
		Query:         input.Query,
		Statuses:      input.Statuses,
		Genres:        input.Genres,
		MinYear:       input.MinYear,
		MaxYear:       input.MaxYear,
		Limit:         input.Limit,
		Offset:        input.Offset,
		SortBy:        input.SortBy,
		SortOrder:     input.Order,
		IncludeFacets: input.Facets,
		Highlight:     true,
	}
	result, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}
