// Package api provides the HTTP surface of the tagging pipeline.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/processor"
	"github.com/musictaggerz/tagger-server/internal/queue"
	"github.com/musictaggerz/tagger-server/internal/search"
	"github.com/musictaggerz/tagger-server/internal/sse"
	"github.com/musictaggerz/tagger-server/internal/store"
	"github.com/musictaggerz/tagger-server/internal/validation"
)

// QueueService is the queue surface handlers need.
type QueueService interface {
	Enqueue(albumID string, opts queue.Options) bool
	Stats() queue.Stats
}

// TaggingService is the orchestrator surface handlers need.
type TaggingService interface {
	Skip(ctx context.Context, albumID string) (*domain.Album, error)
	MarkPending(ctx context.Context, albumID string) (*domain.Album, error)
}

// TagRestorer writes tag snapshots back to disk.
// *tagging.BackupManager satisfies it.
type TagRestorer interface {
	Restore(ctx context.Context, backupID string) (restored, total int, err error)
}

// LibraryScanner runs full library scans.
type LibraryScanner interface {
	ScanLibrary(ctx context.Context, root string, force bool) (*processor.ScanResult, error)
}

// Searcher queries the album search index.
type Searcher interface {
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      *store.Store
	queue      QueueService
	tagging    TaggingService
	backups    TagRestorer
	scans      LibraryScanner
	search     Searcher
	sseManager *sse.Manager
	sseHandler *sse.Handler
	cfg        *config.Config
	router     *chi.Mux
	api        huma.API
	validate   *validation.Validator
	logger     *slog.Logger
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	queueSvc QueueService,
	tagging TaggingService,
	backups TagRestorer,
	scans LibraryScanner,
	searcher Searcher,
	sseManager *sse.Manager,
	cfg *config.Config,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	humaConfig := huma.DefaultConfig("Tagger API", "1.0.0")
	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:      st,
		queue:      queueSvc,
		tagging:    tagging,
		backups:    backups,
		scans:      scans,
		search:     searcher,
		sseManager: sseManager,
		sseHandler: sse.NewHandler(sseManager, logger),
		cfg:        cfg,
		router:     router,
		api:        api,
		validate:   validation.New(),
		logger:     logger,
	}

	s.registerHealthRoutes()
	s.registerAlbumRoutes()
	s.registerBackupRoutes()
	s.registerScanRoutes()
	s.registerSearchRoutes()
	s.registerEventRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// registerEventRoutes mounts the SSE stream. It stays outside the typed
// API: the response is a long-lived event stream, not a JSON document.
func (s *Server) registerEventRoutes() {
	s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
}
