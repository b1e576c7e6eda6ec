// Package watcher monitors the music root for filesystem changes and
// emits events for paths that have stabilized.
//
// The native backend uses fsnotify with a per-path stabilization delay so
// a multi-file album copy produces events only once the files stop
// changing. If the native backend cannot start, or fails at runtime, the
// watcher degrades to a periodic polling scan and reports the degradation
// as a notice instead of failing.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/musictaggerz/tagger-server/internal/config"
)

// Watcher is the facade over the active backend.
type Watcher struct {
	logger *slog.Logger
	opts   Options
	root   string

	mu       sync.Mutex
	backend  backend
	degraded bool

	events  chan Event
	notices chan string
	wg      sync.WaitGroup
}

// New creates a watcher from configuration. Call Start to begin watching.
func New(cfg config.WatcherConfig, logger *slog.Logger) *Watcher {
	opts := Options{
		StabilizationDelay: cfg.StabilizationDelay,
		PollInterval:       cfg.PollInterval,
	}
	opts.setDefaults()

	return &Watcher{
		logger:  logger,
		opts:    opts,
		events:  make(chan Event, 100),
		notices: make(chan string, 10),
	}
}

// Start begins watching root. It prefers the native backend and falls
// back to polling when notifications are unavailable.
func (w *Watcher) Start(ctx context.Context, root string) error {
	w.root = root

	var active backend
	native, err := newFsnotifyBackend(w.logger, w.opts)
	if err == nil {
		if watchErr := native.Watch(root); watchErr != nil {
			native.Stop()
			err = watchErr
		} else {
			active = native
		}
	}
	if active == nil {
		w.logger.Warn("native file watching unavailable", slog.Any("error", err))
		poller := newPollBackend(w.logger, w.opts)
		if pollErr := poller.Watch(root); pollErr != nil {
			return fmt.Errorf("watch %s: %w", root, pollErr)
		}
		active = poller
		w.degraded = true
		w.notice(fmt.Sprintf("File watching unavailable (%v); falling back to scanning every %s", err, w.opts.PollInterval))
	}

	w.mu.Lock()
	w.backend = active
	w.mu.Unlock()

	active.Start(ctx)
	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("watcher started",
		slog.String("root", root),
		slog.Bool("polling", w.degraded),
		slog.Duration("stabilization_delay", w.opts.StabilizationDelay),
	)
	return nil
}

// Events delivers stabilized filesystem events to the processor.
func (w *Watcher) Events() <-chan Event { return w.events }

// Notices delivers operator-facing degradation warnings.
func (w *Watcher) Notices() <-chan string { return w.notices }

// Stop shuts the watcher down and closes its channels.
func (w *Watcher) Stop() {
	w.mu.Lock()
	active := w.backend
	w.backend = nil
	w.mu.Unlock()

	if active != nil {
		active.Stop()
	}
	w.wg.Wait()
	close(w.events)
	close(w.notices)
	w.logger.Info("watcher stopped")
}

func (w *Watcher) current() backend {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backend
}

// run forwards backend events and handles backend failure.
func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		active := w.current()
		if active == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case event, ok := <-active.Events():
			if !ok {
				// A closed channel after a backend swap just means the
				// old backend finished shutting down.
				if w.current() != active {
					continue
				}
				return
			}
			select {
			case w.events <- event:
			default:
				w.logger.Warn("event buffer full, dropping event", slog.String("path", event.Path))
			}
		case err, ok := <-active.Errors():
			if !ok {
				if w.current() != active {
					continue
				}
				return
			}
			w.degrade(ctx, err)
		}
	}
}

// degrade swaps the native backend for the polling fallback after a
// runtime failure, such as the OS running out of watch descriptors.
func (w *Watcher) degrade(ctx context.Context, cause error) {
	w.mu.Lock()
	if w.degraded || w.backend == nil {
		w.mu.Unlock()
		w.logger.Warn("watcher error", slog.Any("error", cause))
		return
	}
	old := w.backend

	poller := newPollBackend(w.logger, w.opts)
	if err := poller.Watch(w.root); err != nil {
		w.mu.Unlock()
		w.logger.Error("failed to start polling fallback", slog.Any("error", err))
		return
	}
	w.backend = poller
	w.degraded = true
	w.mu.Unlock()

	go old.Stop()
	poller.Start(ctx)

	w.logger.Warn("file watching degraded to polling", slog.Any("error", cause))
	w.notice(fmt.Sprintf("File watching failed (%v); falling back to scanning every %s", cause, w.opts.PollInterval))
}

func (w *Watcher) notice(message string) {
	select {
	case w.notices <- message:
	default:
	}
}
