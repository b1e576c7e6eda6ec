package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/musictaggerz/tagger-server/internal/tags"
)

// pollBackend is the fallback event source for environments where
// filesystem notifications do not work, such as network mounts or bind
// mounts into containers. It walks the root on a fixed interval and
// compares per-folder audio file counts against the previous pass.
type pollBackend struct {
	logger *slog.Logger
	opts   Options
	root   string

	known map[string]int // album folder -> audio file count

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func newPollBackend(logger *slog.Logger, opts Options) *pollBackend {
	return &pollBackend{
		logger: logger,
		opts:   opts,
		known:  make(map[string]int),
		events: make(chan Event, 100),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (b *pollBackend) Watch(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", path)
	}
	b.root = filepath.Clean(path)
	return nil
}

func (b *pollBackend) Start(ctx context.Context) {
	// The first pass primes the known set without emitting, so albums
	// already in the library are not re-enqueued on startup.
	b.scan(true)

	b.wg.Add(1)
	go b.loop(ctx)
}

func (b *pollBackend) loop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.scan(false)
		}
	}
}

// scan walks the root and emits events for new, changed, and vanished
// audio folders.
func (b *pollBackend) scan(prime bool) {
	seen := make(map[string]int)

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.logger.Warn("poll scan error", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if b.opts.shouldIgnore(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !tags.IsAudioFile(path) {
			return nil
		}
		seen[filepath.Dir(path)]++
		return nil
	})
	if err != nil {
		select {
		case b.errors <- err:
		default:
		}
		return
	}

	for folder, count := range seen {
		prev, ok := b.known[folder]
		switch {
		case prime:
		case !ok:
			b.logger.Info("new audio folder detected", slog.String("path", folder))
			b.emit(Event{Type: EventAdded, Path: folder, ModTime: time.Now()})
		case prev != count:
			b.logger.Info("audio folder changed",
				slog.String("path", folder),
				slog.Int("files_before", prev),
				slog.Int("files_now", count),
			)
			b.emit(Event{Type: EventModified, Path: folder, ModTime: time.Now()})
		}
	}

	for folder := range b.known {
		if _, ok := seen[folder]; !ok && !prime {
			b.emit(Event{Type: EventRemoved, Path: folder})
		}
	}

	b.known = seen
}

func (b *pollBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

func (b *pollBackend) Events() <-chan Event { return b.events }

func (b *pollBackend) Errors() <-chan error { return b.errors }

func (b *pollBackend) Stop() {
	close(b.done)
	b.wg.Wait()
	close(b.events)
	close(b.errors)
}
