package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyBackend turns raw fsnotify events into stabilized Events.
// Every write resets a per-path timer; only a path that stayed quiet for
// the full stabilization delay (and whose size and mtime stopped moving)
// produces an event. A file additionally waits for its own directory to
// go quiet, so the first track of an album copy does not settle while
// the rest are still arriving.
type fsnotifyBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingEvent
	settled map[string]struct{}  // paths that already produced an event
	dirLast map[string]time.Time // last raw file activity per directory

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// pendingEvent tracks a file that may still be changing.
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

func newFsnotifyBackend(logger *slog.Logger, opts Options) (*fsnotifyBackend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &fsnotifyBackend{
		logger:  logger,
		opts:    opts,
		watcher: w,
		pending: make(map[string]*pendingEvent),
		settled: make(map[string]struct{}),
		dirLast: make(map[string]time.Time),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers a directory tree to monitor.
func (b *fsnotifyBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", path)
	}
	return b.watchDir(path)
}

// watchDir recursively adds watches for a directory tree. fsnotify does
// not watch recursively on its own, so each subdirectory gets its own
// watch, including ones created later.
func (b *fsnotifyBackend) watchDir(path string) error {
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", slog.String("path", p), slog.Any("error", err))
			return nil
		}
		if b.opts.shouldIgnore(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if err := b.watcher.Add(p); err != nil {
			b.logger.Error("failed to add watch", slog.String("path", p), slog.Any("error", err))
			return nil
		}
		b.logger.Debug("watching directory", slog.String("path", p))
		return nil
	})
}

func (b *fsnotifyBackend) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.processEvents(ctx)
}

func (b *fsnotifyBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handle(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			select {
			case b.errors <- err:
			case <-b.done:
				return
			}
		}
	}
}

func (b *fsnotifyBackend) handle(event fsnotify.Event) {
	path := event.Name

	if b.opts.shouldIgnore(path) {
		return
	}

	// A new directory needs its own watch before its files arrive.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("failed to watch new directory", slog.String("path", path), slog.Any("error", err))
			}
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		b.touchDir(path)
		b.cancelPending(path)
		b.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		b.touchDir(path)
		b.startStabilizing(path)
	}
}

// touchDir records raw activity in a path's directory. Pending siblings
// use it to hold their events until the whole directory goes quiet.
func (b *fsnotifyBackend) touchDir(path string) {
	b.mu.Lock()
	b.dirLast[filepath.Dir(path)] = time.Now()
	b.mu.Unlock()
}

// startStabilizing arms (or re-arms) the stabilization timer for a path.
func (b *fsnotifyBackend) startStabilizing(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pending, exists := b.pending[path]; exists {
		pending.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(b.pending, path)
		return
	}
	if info.IsDir() {
		return
	}

	pending := &pendingEvent{
		size:    info.Size(),
		modTime: info.ModTime(),
	}
	pending.timer = time.AfterFunc(b.opts.StabilizationDelay, func() {
		b.checkStable(path)
	})
	b.pending[path] = pending
}

// checkStable fires when a path's timer expires. If the file kept
// changing during the delay the timer restarts; otherwise the event is
// finally emitted.
func (b *fsnotifyBackend) checkStable(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, exists := b.pending[path]
	if !exists {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted while stabilizing.
		delete(b.pending, path)
		b.pruneDirLocked(filepath.Dir(path))
		b.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		// Still being written, go around again.
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(b.opts.StabilizationDelay, func() {
			b.checkStable(path)
		})
		return
	}

	// The file itself is stable, but siblings may still be copying.
	// Hold the event until the directory has been quiet for the full
	// delay as well.
	dir := filepath.Dir(path)
	if wait := b.opts.StabilizationDelay - time.Since(b.dirLast[dir]); wait > 0 {
		pending.timer = time.AfterFunc(wait, func() {
			b.checkStable(path)
		})
		return
	}

	delete(b.pending, path)
	b.pruneDirLocked(dir)

	typ := EventAdded
	if _, seen := b.settled[path]; seen {
		typ = EventModified
	}
	b.settled[path] = struct{}{}

	b.emit(Event{
		Type:    typ,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (b *fsnotifyBackend) cancelPending(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pending, exists := b.pending[path]; exists {
		pending.timer.Stop()
		delete(b.pending, path)
	}
	delete(b.settled, path)
	b.pruneDirLocked(filepath.Dir(path))
}

// pruneDirLocked drops a directory's activity record once nothing in it
// is pending anymore. Caller holds b.mu.
func (b *fsnotifyBackend) pruneDirLocked(dir string) {
	for p := range b.pending {
		if filepath.Dir(p) == dir {
			return
		}
	}
	delete(b.dirLast, dir)
}

func (b *fsnotifyBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

func (b *fsnotifyBackend) Events() <-chan Event { return b.events }

func (b *fsnotifyBackend) Errors() <-chan error { return b.errors }

func (b *fsnotifyBackend) Stop() {
	close(b.done)

	b.mu.Lock()
	for _, pending := range b.pending {
		pending.timer.Stop()
	}
	clear(b.pending)
	clear(b.dirLast)
	b.mu.Unlock()

	b.watcher.Close()
	b.wg.Wait()

	close(b.events)
	close(b.errors)
}
