package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/musictaggerz/tagger-server/internal/domain"
	apperrors "github.com/musictaggerz/tagger-server/internal/errors"
	"github.com/musictaggerz/tagger-server/internal/queue"
)

func (s *Server) registerScanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startScan",
		Method:        http.MethodPost,
		Path:          "/api/v1/scan",
		Summary:       "Start library scan",
		Description:   "Walks the library and reconciles albums. Only one scan runs at a time.",
		DefaultStatus: http.StatusAccepted,
		Tags:          []string{"Library"},
	}, s.handleStartScan)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Pipeline statistics",
		Tags:        []string{"Library"},
	}, s.handleGetStats)
}

type ScanRequest struct {
	Path  string `json:"path,omitempty" doc:"Directory to scan, defaults to the configured library root"`
	Force bool   `json:"force,omitempty" doc:"Reset match state and re-tag every album"`
}

type ScanInput struct {
	Body *ScanRequest `required:"false"`
}

type ScanStatus struct {
	Started bool   `json:"started"`
	Path    string `json:"path"`
}

type ScanOutput struct {
	Body ScanStatus
}

func (s *Server) handleStartScan(ctx context.Context, input *ScanInput) (*ScanOutput, error) {
	path := s.cfg.Library.MusicPath
	force := false
	if input.Body != nil {
		if input.Body.Path != "" {
			path = input.Body.Path
		}
		force = input.Body.Force
	}
	if path == "" {
		return nil, apperrors.Validation("no library path configured")
	}

	if s.sseManager.IsScanning() {
		return nil, apperrors.Conflict("a scan is already running")
	}
	s.sseManager.SetScanning(true)

	// The scan outlives the request; progress is reported over SSE.
	go func() {
		defer s.sseManager.SetScanning(false)
		if _, err := s.scans.ScanLibrary(context.Background(), path, force); err != nil {
			s.logger.Error("library scan failed", "path", path, "error", err)
		}
	}()

	return &ScanOutput{Body: ScanStatus{Started: true, Path: path}}, nil
}

type StatsBody struct {
	Queue    queue.Stats                `json:"queue"`
	Statuses map[domain.AlbumStatus]int `json:"statuses"`
	Scanning bool                       `json:"scanning"`
	Clients  int                        `json:"sse_clients"`
}

type StatsOutput struct {
	Body StatsBody
}

func (s *Server) handleGetStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	counts, err := s.store.CountAlbumsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{Body: StatsBody{
		Queue:    s.queue.Stats(),
		Statuses: counts,
		Scanning: s.sseManager.IsScanning(),
		Clients:  s.sseManager.ClientCount(),
	}}, nil
}
