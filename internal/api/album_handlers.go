package api

import (
	"context"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/http/response"
	"github.com/musictaggerz/tagger-server/internal/queue"
	"github.com/musictaggerz/tagger-server/internal/store"
)

func (s *Server) registerAlbumRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAlbums",
		Method:      http.MethodGet,
		Path:        "/api/v1/albums",
		Summary:     "List albums",
		Description: "Returns albums, optionally filtered by pipeline status",
		Tags:        []string{"Albums"},
	}, s.handleListAlbums)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAlbum",
		Method:      http.MethodGet,
		Path:        "/api/v1/albums/{id}",
		Summary:     "Get album",
		Tags:        []string{"Albums"},
	}, s.handleGetAlbum)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAlbumCandidates",
		Method:      http.MethodGet,
		Path:        "/api/v1/albums/{id}/candidates",
		Summary:     "List match candidates",
		Description: "Returns the scored MusicBrainz candidates from the last match attempt",
		Tags:        []string{"Albums"},
	}, s.handleListCandidates)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAlbumActivity",
		Method:      http.MethodGet,
		Path:        "/api/v1/albums/{id}/activity",
		Summary:     "List album activity",
		Tags:        []string{"Albums"},
	}, s.handleListActivity)

	huma.Register(s.api, huma.Operation{
		OperationID:   "enqueueAlbum",
		Method:        http.MethodPost,
		Path:          "/api/v1/albums/{id}/enqueue",
		Summary:       "Queue album for matching",
		DefaultStatus: http.StatusAccepted,
		Tags:          []string{"Albums"},
	}, s.handleEnqueueAlbum)

	huma.Register(s.api, huma.Operation{
		OperationID: "skipAlbum",
		Method:      http.MethodPost,
		Path:        "/api/v1/albums/{id}/skip",
		Summary:     "Skip album",
		Description: "Excludes the album from automatic tagging",
		Tags:        []string{"Albums"},
	}, s.handleSkipAlbum)

	huma.Register(s.api, huma.Operation{
		OperationID:   "retagAlbum",
		Method:        http.MethodPost,
		Path:          "/api/v1/albums/{id}/retag",
		Summary:       "Retag album",
		Description:   "Resets the album and queues a fresh match, optionally pinned to a chosen release",
		DefaultStatus: http.StatusAccepted,
		Tags:          []string{"Albums"},
	}, s.handleRetagAlbum)

	// Cover bytes are served outside the typed API.
	s.router.Get("/api/v1/albums/{id}/cover", s.handleGetCover)
}

type ListAlbumsInput struct {
	Status string `query:"status" enum:"pending,matching,tagged,needs_review,failed,skipped" required:"false" doc:"Filter by pipeline status"`
	Limit  int    `query:"limit" minimum:"1" maximum:"1000" required:"false" doc:"Page size, default 100"`
	Cursor string `query:"cursor" required:"false" doc:"Opaque pagination cursor"`
}

type AlbumPage struct {
	Items      []*domain.Album `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

type ListAlbumsOutput struct {
	Body AlbumPage
}

func (s *Server) handleListAlbums(ctx context.Context, input *ListAlbumsInput) (*ListAlbumsOutput, error) {
	// The status index holds a handful of albums per status; it is not
	// paginated.
	if input.Status != "" {
		albums, err := s.store.ListAlbumsByStatus(ctx, domain.AlbumStatus(input.Status))
		if err != nil {
			return nil, err
		}
		return &ListAlbumsOutput{Body: AlbumPage{Items: albums}}, nil
	}

	params := store.DefaultPaginationParams()
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Cursor = input.Cursor

	page, err := s.store.ListAlbums(ctx, params)
	if err != nil {
		return nil, err
	}
	return &ListAlbumsOutput{Body: AlbumPage{
		Items:      page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}}, nil
}

type AlbumIDInput struct {
	ID string `path:"id" doc:"Album ID"`
}

type AlbumOutput struct {
	Body *domain.Album
}

func (s *Server) handleGetAlbum(ctx context.Context, input *AlbumIDInput) (*AlbumOutput, error) {
	album, err := s.store.GetAlbum(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AlbumOutput{Body: album}, nil
}

type CandidatesOutput struct {
	Body []*domain.MatchCandidate
}

func (s *Server) handleListCandidates(ctx context.Context, input *AlbumIDInput) (*CandidatesOutput, error) {
	if _, err := s.store.GetAlbum(ctx, input.ID); err != nil {
		return nil, err
	}
	candidates, err := s.store.GetCandidates(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &CandidatesOutput{Body: candidates}, nil
}

type ListActivityInput struct {
	ID    string `path:"id" doc:"Album ID"`
	Limit int    `query:"limit" minimum:"1" maximum:"200" required:"false" doc:"Maximum entries, default 50"`
}

type ActivityOutput struct {
	Body []*domain.Activity
}

func (s *Server) handleListActivity(ctx context.Context, input *ListActivityInput) (*ActivityOutput, error) {
	if _, err := s.store.GetAlbum(ctx, input.ID); err != nil {
		return nil, err
	}
	limit := input.Limit
	if limit == 0 {
		limit = 50
	}
	activities, err := s.store.GetAlbumActivities(ctx, input.ID, limit)
	if err != nil {
		return nil, err
	}
	return &ActivityOutput{Body: activities}, nil
}

type EnqueueRequest struct {
	ReleaseID string `json:"release_id,omitempty" validate:"omitempty,uuid" doc:"Pin matching to this MusicBrainz release"`
	Force     bool   `json:"force,omitempty" doc:"Re-queue even if already queued"`
}

type EnqueueInput struct {
	ID   string          `path:"id" doc:"Album ID"`
	Body *EnqueueRequest `required:"false"`
}

type EnqueueResponse struct {
	Queued bool        `json:"queued"`
	Stats  queue.Stats `json:"queue"`
}

type EnqueueOutput struct {
	Body EnqueueResponse
}

func (s *Server) handleEnqueueAlbum(ctx context.Context, input *EnqueueInput) (*EnqueueOutput, error) {
	if _, err := s.store.GetAlbum(ctx, input.ID); err != nil {
		return nil, err
	}

	opts := queue.Options{}
	if input.Body != nil {
		if err := s.validate.Validate(input.Body); err != nil {
			return nil, err
		}
		opts.ReleaseID = input.Body.ReleaseID
		opts.Force = input.Body.Force
	}

	queued := s.queue.Enqueue(input.ID, opts)
	return &EnqueueOutput{Body: EnqueueResponse{
		Queued: queued,
		Stats:  s.queue.Stats(),
	}}, nil
}

func (s *Server) handleSkipAlbum(ctx context.Context, input *AlbumIDInput) (*AlbumOutput, error) {
	album, err := s.tagging.Skip(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AlbumOutput{Body: album}, nil
}

type RetagRequest struct {
	ReleaseID string `json:"release_id,omitempty" validate:"omitempty,uuid" doc:"Tag with this release instead of searching"`
}

type RetagInput struct {
	ID   string        `path:"id" doc:"Album ID"`
	Body *RetagRequest `required:"false"`
}

func (s *Server) handleRetagAlbum(ctx context.Context, input *RetagInput) (*EnqueueOutput, error) {
	opts := queue.Options{Force: true}
	if input.Body != nil {
		if err := s.validate.Validate(input.Body); err != nil {
			return nil, err
		}
		opts.ReleaseID = input.Body.ReleaseID
	}

	if _, err := s.tagging.MarkPending(ctx, input.ID); err != nil {
		return nil, err
	}

	queued := s.queue.Enqueue(input.ID, opts)
	return &EnqueueOutput{Body: EnqueueResponse{
		Queued: queued,
		Stats:  s.queue.Stats(),
	}}, nil
}

// handleGetCover streams the album's saved cover file.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	album, err := s.store.GetAlbum(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if album.CoverPath == "" {
		response.NotFound(w, "album has no cover", s.logger)
		return
	}
	if _, err := os.Stat(album.CoverPath); err != nil {
		response.NotFound(w, "cover file missing", s.logger)
		return
	}
	http.ServeFile(w, r, album.CoverPath)
}
