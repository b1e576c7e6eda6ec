package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musictaggerz/tagger-server/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func shortOptions() Options {
	opts := Options{
		StabilizationDelay: 50 * time.Millisecond,
		PollInterval:       time.Hour, // ticks triggered manually in tests
	}
	opts.setDefaults()
	return opts
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func waitForEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestFsnotifyBackend_EmitsAfterStabilization(t *testing.T) {
	root := t.TempDir()
	b, err := newFsnotifyBackend(testLogger(), shortOptions())
	require.NoError(t, err)
	require.NoError(t, b.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	path := filepath.Join(root, "01.flac")
	writeFile(t, path, []byte("audio"))

	ev := waitForEvent(t, b.Events())
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, int64(5), ev.Size)

	// A second write to a settled path reads as a modification.
	writeFile(t, path, []byte("audio v2"))
	ev = waitForEvent(t, b.Events())
	assert.Equal(t, EventModified, ev.Type)
}

func TestFsnotifyBackend_BurstSettlesTogether(t *testing.T) {
	root := t.TempDir()
	opts := shortOptions()
	opts.StabilizationDelay = 400 * time.Millisecond
	b, err := newFsnotifyBackend(testLogger(), opts)
	require.NoError(t, err)
	require.NoError(t, b.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	// Two tracks copied a beat apart, like an album landing file by file.
	writeFile(t, filepath.Join(root, "01.flac"), []byte("audio"))
	time.Sleep(250 * time.Millisecond)
	writeFile(t, filepath.Join(root, "02.flac"), []byte("audio"))
	lastWrite := time.Now()

	first := waitForEvent(t, b.Events())
	arrived := time.Now()
	second := waitForEvent(t, b.Events())

	assert.ElementsMatch(t,
		[]string{filepath.Join(root, "01.flac"), filepath.Join(root, "02.flac")},
		[]string{first.Path, second.Path})
	assert.GreaterOrEqual(t, arrived.Sub(lastWrite), opts.StabilizationDelay-20*time.Millisecond,
		"no file may settle while its folder is still receiving writes")
}

func TestFsnotifyBackend_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	b, err := newFsnotifyBackend(testLogger(), shortOptions())
	require.NoError(t, err)
	require.NoError(t, b.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	album := filepath.Join(root, "Artist", "Album")
	require.NoError(t, os.MkdirAll(album, 0755))

	// Give the backend a moment to add the watch for the new directory.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(album, "01.flac")
	writeFile(t, path, []byte("audio"))

	ev := waitForEvent(t, b.Events())
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, path, ev.Path)
}

func TestFsnotifyBackend_RemovalCancelsPending(t *testing.T) {
	root := t.TempDir()
	b, err := newFsnotifyBackend(testLogger(), shortOptions())
	require.NoError(t, err)
	require.NoError(t, b.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	path := filepath.Join(root, "01.flac")
	writeFile(t, path, []byte("audio"))
	require.NoError(t, os.Remove(path))

	ev := waitForEvent(t, b.Events())
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, path, ev.Path)
}

func TestFsnotifyBackend_IgnoresHiddenAndTempFiles(t *testing.T) {
	root := t.TempDir()
	b, err := newFsnotifyBackend(testLogger(), shortOptions())
	require.NoError(t, err)
	require.NoError(t, b.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	writeFile(t, filepath.Join(root, ".DS_Store"), []byte("junk"))
	writeFile(t, filepath.Join(root, "copy.tmp"), []byte("junk"))
	writeFile(t, filepath.Join(root, "01.flac"), []byte("audio"))

	ev := waitForEvent(t, b.Events())
	assert.Equal(t, filepath.Join(root, "01.flac"), ev.Path)

	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected extra event for %s", ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPollBackend_DetectsNewAndChangedFolders(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "Artist", "Existing")
	writeFile(t, filepath.Join(album, "01.flac"), []byte("audio"))

	b := newPollBackend(testLogger(), shortOptions())
	require.NoError(t, b.Watch(root))

	// Prime pass: the existing album must not produce an event.
	b.scan(true)
	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected event on prime pass: %s", ev.Path)
	default:
	}

	// New folder appears.
	newAlbum := filepath.Join(root, "Artist", "New Album")
	writeFile(t, filepath.Join(newAlbum, "01.flac"), []byte("audio"))
	b.scan(false)

	ev := <-b.Events()
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, newAlbum, ev.Path)

	// A track added to a known folder reads as a modification.
	writeFile(t, filepath.Join(album, "02.flac"), []byte("audio"))
	b.scan(false)

	ev = <-b.Events()
	assert.Equal(t, EventModified, ev.Type)
	assert.Equal(t, album, ev.Path)

	// Removing the folder reads as a removal.
	require.NoError(t, os.RemoveAll(newAlbum))
	b.scan(false)

	ev = <-b.Events()
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, newAlbum, ev.Path)
}

func TestPollBackend_IgnoresNonAudio(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Artist", "Album", "cover.jpg"), []byte("img"))

	b := newPollBackend(testLogger(), shortOptions())
	require.NoError(t, b.Watch(root))

	b.scan(true)
	b.scan(false)

	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected event for image-only folder: %s", ev.Path)
	default:
	}
}

func TestWatcher_EndToEnd(t *testing.T) {
	root := t.TempDir()
	w := New(config.WatcherConfig{
		Enabled:            true,
		StabilizationDelay: 50 * time.Millisecond,
		PollInterval:       time.Hour,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer w.Stop()

	path := filepath.Join(root, "01.flac")
	writeFile(t, path, []byte("audio"))

	ev := waitForEvent(t, w.Events())
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_DegradesToPollingOnBackendFailure(t *testing.T) {
	root := t.TempDir()
	w := New(config.WatcherConfig{
		StabilizationDelay: 50 * time.Millisecond,
		PollInterval:       time.Hour,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer w.Stop()

	w.degrade(ctx, errors.New("inotify watch limit reached"))

	select {
	case notice := <-w.Notices():
		assert.Contains(t, notice, "falling back")
	case <-time.After(time.Second):
		t.Fatal("expected a degradation notice")
	}

	w.mu.Lock()
	degraded := w.degraded
	w.mu.Unlock()
	assert.True(t, degraded)

	// The polling backend keeps watching.
	album := filepath.Join(root, "Artist", "Album")
	writeFile(t, filepath.Join(album, "01.flac"), []byte("audio"))

	w.mu.Lock()
	poller, ok := w.backend.(*pollBackend)
	w.mu.Unlock()
	require.True(t, ok)
	poller.scan(false)

	ev := waitForEvent(t, w.Events())
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, album, ev.Path)
}

func TestWatcher_StartMissingRootWithPollingFallback(t *testing.T) {
	// Both backends need the root to exist; a bogus root fails cleanly
	// instead of spinning.
	w := New(config.WatcherConfig{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := w.Start(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
