package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/musictaggerz/tagger-server/internal/api"
	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/logger"
	"github.com/musictaggerz/tagger-server/internal/processor"
	"github.com/musictaggerz/tagger-server/internal/tagging"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	queueHandle := do.MustInvoke[*QueueHandle](i)
	orchestrator := do.MustInvoke[*tagging.Orchestrator](i)
	backups := do.MustInvoke[*tagging.BackupManager](i)
	proc := do.MustInvoke[*processor.Processor](i)

	handler := api.NewServer(
		storeHandle.Store,
		queueHandle.Manager,
		orchestrator,
		backups,
		proc,
		searchHandle.SearchIndex,
		sseHandle.Manager,
		cfg,
		log.Logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
