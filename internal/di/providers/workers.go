package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/logger"
	"github.com/musictaggerz/tagger-server/internal/processor"
	"github.com/musictaggerz/tagger-server/internal/watcher"
)

// FileWatcherHandle wraps the file watcher with shutdown capability. When
// watching is disabled by configuration the Watcher is nil.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	h.Watcher.Stop()
	return nil
}

// ProvideFileWatcher provides the library file watcher and feeds its events
// into the processor.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	proc := do.MustInvoke[*processor.Processor](i)

	if !cfg.Watcher.Enabled || cfg.Library.MusicPath == "" {
		log.Info("File watching disabled by configuration")
		return &FileWatcherHandle{}, nil
	}

	w := watcher.New(cfg.Watcher, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx, cfg.Library.MusicPath); err != nil {
		cancel()
		return nil, err
	}

	go proc.Run(ctx, w)

	log.Info("File watcher started", "path", cfg.Library.MusicPath)

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

// RunInitialScan walks the library once at startup so albums copied in
// while the server was down are picked up.
func RunInitialScan(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	proc := do.MustInvoke[*processor.Processor](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	if cfg.Library.MusicPath == "" {
		return
	}
	if !sseHandle.IsScanning() {
		sseHandle.SetScanning(true)
		go func() {
			defer sseHandle.SetScanning(false)
			if _, err := proc.ScanLibrary(context.Background(), cfg.Library.MusicPath, false); err != nil {
				log.Error("Startup library scan failed", "error", err)
			}
		}()
	}
}
