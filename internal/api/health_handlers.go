package api

import (
	"net/http"
	"time"

	"github.com/musictaggerz/tagger-server/internal/http/response"
)

func (s *Server) registerHealthRoutes() {
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]any{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339),
		"sse_clients": s.sseManager.ClientCount(),
	}, s.logger)
}
