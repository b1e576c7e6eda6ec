package processor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/queue"
	"github.com/musictaggerz/tagger-server/internal/scanner"
	"github.com/musictaggerz/tagger-server/internal/sse"
	"github.com/musictaggerz/tagger-server/internal/store"
	"github.com/musictaggerz/tagger-server/internal/tags"
	"github.com/musictaggerz/tagger-server/internal/watcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testWatcherConfig() config.WatcherConfig {
	return config.WatcherConfig{
		Enabled:            true,
		StabilizationDelay: 50 * time.Millisecond,
		PollInterval:       time.Hour,
	}
}

// stubReader serves the same tags for every file. Album identity then
// falls back to the "Artist - Title" folder name, which is what the
// fixtures use.
type stubReader struct{}

func (stubReader) ReadTags(_ context.Context, _ string) (*tags.TrackTags, error) {
	return &tags.TrackTags{Format: "flac", Duration: 100 * time.Second}, nil
}

func (stubReader) ExtractArtwork(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

type queueCall struct {
	albumID string
	opts    queue.Options
}

type fakeQueue struct {
	mu    sync.Mutex
	calls []queueCall
}

func (q *fakeQueue) Enqueue(albumID string, opts queue.Options) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, queueCall{albumID: albumID, opts: opts})
	return true
}

func (q *fakeQueue) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func (q *fakeQueue) last() queueCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[len(q.calls)-1]
}

type fixture struct {
	store *store.Store
	queue *fakeQueue
	proc  *Processor
	root  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sc, err := scanner.New(stubReader{}, nil, testLogger())
	require.NoError(t, err)

	q := &fakeQueue{}
	return &fixture{
		store: st,
		queue: q,
		proc:  New(st, sc, q, sse.NewManager(testLogger()), testLogger()),
		root:  t.TempDir(),
	}
}

func (f *fixture) makeTree(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(f.root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
}

func (f *fixture) albumByPath(t *testing.T, rel string) *domain.Album {
	t.Helper()
	album, err := f.store.GetAlbumByPath(context.Background(), filepath.Join(f.root, rel))
	require.NoError(t, err)
	return album
}

func TestScanLibrary_CreatesAndQueuesAlbums(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t,
		"Slowdive - Souvlaki/01 Alison.flac",
		"Slowdive - Souvlaki/02 Machine Gun.flac",
		"Pink Floyd - The Wall/CD1/01.flac",
		"Pink Floyd - The Wall/CD2/01.flac",
	)

	result, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Removed)

	souvlaki := f.albumByPath(t, "Slowdive - Souvlaki")
	assert.Equal(t, "Slowdive", souvlaki.Artist)
	assert.Equal(t, "Souvlaki", souvlaki.Title)
	assert.Equal(t, domain.StatusPending, souvlaki.Status)
	assert.Equal(t, 2, souvlaki.TrackCount)
	assert.InDelta(t, 200, souvlaki.TotalDuration, 0.01)

	wall := f.albumByPath(t, "Pink Floyd - The Wall")
	assert.Equal(t, 2, wall.DiscCount)

	assert.Equal(t, 2, f.queue.callCount())

	activities, err := f.store.GetAlbumActivities(context.Background(), souvlaki.ID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, domain.ActivityQueued, activities[0].Type)
	assert.Equal(t, domain.ActivityScanned, activities[1].Type)
}

func TestScanLibrary_SecondScanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)

	result, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)
	assert.Zero(t, result.Added)
	assert.Zero(t, result.Updated)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 1, f.queue.callCount(), "unchanged album must not be re-queued")
}

func TestScanLibrary_DetectsTrackChanges(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)
	original := f.albumByPath(t, "Slowdive - Souvlaki")
	keptID := original.Tracks[0].ID

	f.makeTree(t, "Slowdive - Souvlaki/02 Machine Gun.flac")
	result, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	album := f.albumByPath(t, "Slowdive - Souvlaki")
	assert.Equal(t, 2, album.TrackCount)
	assert.Equal(t, domain.StatusPending, album.Status)
	assert.Equal(t, keptID, album.Tracks[0].ID, "known tracks keep their IDs")
	assert.Equal(t, 2, f.queue.callCount())
}

func TestScanLibrary_RemovesVanishedAlbums(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t,
		"Slowdive - Souvlaki/01 Alison.flac",
		"Low - Things We Lost in the Fire/01.flac",
	)

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "Low - Things We Lost in the Fire")))
	result, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	_, err = f.store.GetAlbumByPath(context.Background(), filepath.Join(f.root, "Low - Things We Lost in the Fire"))
	assert.ErrorIs(t, err, store.ErrAlbumNotFound)

	f.albumByPath(t, "Slowdive - Souvlaki")
}

func TestScanLibrary_ForceResetsMatchState(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)

	tagged := f.albumByPath(t, "Slowdive - Souvlaki")
	tagged.Status = domain.StatusTagged
	tagged.ReleaseID = "rel-1"
	tagged.MatchConfidence = 97
	require.NoError(t, f.store.UpdateAlbum(context.Background(), tagged))

	result, err := f.proc.ScanLibrary(context.Background(), f.root, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	album := f.albumByPath(t, "Slowdive - Souvlaki")
	assert.Equal(t, domain.StatusPending, album.Status)
	assert.Empty(t, album.ReleaseID)
	assert.Zero(t, album.MatchConfidence)

	last := f.queue.last()
	assert.Equal(t, album.ID, last.albumID)
	assert.True(t, last.opts.Force)
}

func TestHandleEvent_NewAlbumFolder(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	err := f.proc.HandleEvent(context.Background(), watcher.Event{
		Type: watcher.EventAdded,
		Path: filepath.Join(f.root, "Slowdive - Souvlaki", "01 Alison.flac"),
	})
	require.NoError(t, err)

	album := f.albumByPath(t, "Slowdive - Souvlaki")
	assert.Equal(t, domain.StatusPending, album.Status)
	assert.Equal(t, 1, f.queue.callCount())
	assert.Equal(t, album.ID, f.queue.last().albumID)
}

func TestHandleEvent_DiscSubfolderResolvesToParent(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t,
		"Pink Floyd - The Wall/CD1/01.flac",
		"Pink Floyd - The Wall/CD2/01.flac",
	)

	err := f.proc.HandleEvent(context.Background(), watcher.Event{
		Type: watcher.EventAdded,
		Path: filepath.Join(f.root, "Pink Floyd - The Wall", "CD1", "01.flac"),
	})
	require.NoError(t, err)

	album := f.albumByPath(t, "Pink Floyd - The Wall")
	assert.Equal(t, 2, album.DiscCount)
	assert.Equal(t, 2, album.TrackCount)
}

func TestHandleEvent_IgnoredFileDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/notes.log")

	err := f.proc.HandleEvent(context.Background(), watcher.Event{
		Type: watcher.EventAdded,
		Path: filepath.Join(f.root, "Slowdive - Souvlaki", "notes.log"),
	})
	require.NoError(t, err)

	_, err = f.store.GetAlbumByPath(context.Background(), filepath.Join(f.root, "Slowdive - Souvlaki"))
	assert.ErrorIs(t, err, store.ErrAlbumNotFound)
	assert.Zero(t, f.queue.callCount())
}

func TestHandleEvent_RemovedFolderDeletesAlbum(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)

	path := filepath.Join(f.root, "Slowdive - Souvlaki")
	require.NoError(t, os.RemoveAll(path))

	err = f.proc.HandleEvent(context.Background(), watcher.Event{
		Type: watcher.EventRemoved,
		Path: path,
	})
	require.NoError(t, err)

	_, err = f.store.GetAlbumByPath(context.Background(), path)
	assert.ErrorIs(t, err, store.ErrAlbumNotFound)
}

func TestHandleEvent_LastTrackRemovedDeletesAlbum(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t,
		"Slowdive - Souvlaki/01 Alison.flac",
		"Slowdive - Souvlaki/cover.jpg",
	)

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)

	track := filepath.Join(f.root, "Slowdive - Souvlaki", "01 Alison.flac")
	require.NoError(t, os.Remove(track))

	err = f.proc.HandleEvent(context.Background(), watcher.Event{
		Type: watcher.EventRemoved,
		Path: track,
	})
	require.NoError(t, err)

	_, err = f.store.GetAlbumByPath(context.Background(), filepath.Join(f.root, "Slowdive - Souvlaki"))
	assert.ErrorIs(t, err, store.ErrAlbumNotFound,
		"an album folder without audio files is no longer an album")
}

func TestProcessFolder_ImageOnlyFolder(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/cover.jpg")
	folder := filepath.Join(f.root, "Slowdive - Souvlaki")

	require.NoError(t, f.proc.ProcessFolder(context.Background(), folder))

	assert.Zero(t, f.queue.callCount())
	_, err := f.store.GetAlbumByPath(context.Background(), folder)
	assert.ErrorIs(t, err, store.ErrAlbumNotFound)
}

func TestProcessFolder_ReadFailureKeepsAlbum(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	_, err := f.proc.ScanLibrary(context.Background(), f.root, false)
	require.NoError(t, err)

	// Replace the folder with a regular file: the path still exists but
	// the directory read fails. That is a read problem, not a removal.
	folder := filepath.Join(f.root, "Slowdive - Souvlaki")
	require.NoError(t, os.RemoveAll(folder))
	require.NoError(t, os.WriteFile(folder, []byte("x"), 0o644))

	require.NoError(t, f.proc.ProcessFolder(context.Background(), folder))

	_, err = f.store.GetAlbumByPath(context.Background(), folder)
	assert.NoError(t, err, "a read failure must not delete the stored album")
}

func TestProcessFolder_SkipsWhenAlreadyLocked(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")
	folder := filepath.Join(f.root, "Slowdive - Souvlaki")

	mu := f.proc.locks.get(folder)
	mu.Lock()
	defer mu.Unlock()

	require.NoError(t, f.proc.ProcessFolder(context.Background(), folder))

	_, err := f.store.GetAlbumByPath(context.Background(), folder)
	assert.ErrorIs(t, err, store.ErrAlbumNotFound)
}

func TestRun_ForwardsEventsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.makeTree(t, "Slowdive - Souvlaki/01 Alison.flac")

	w := watcher.New(testWatcherConfig(), testLogger())
	require.NoError(t, w.Start(context.Background(), f.root))
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.proc.Run(ctx, w)
	}()

	require.NoError(t, os.WriteFile(
		filepath.Join(f.root, "Slowdive - Souvlaki", "02 Machine Gun.flac"),
		[]byte("x"), 0o644))

	require.Eventually(t, func() bool {
		_, err := f.store.GetAlbumByPath(context.Background(), filepath.Join(f.root, "Slowdive - Souvlaki"))
		return !errors.Is(err, store.ErrAlbumNotFound)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
