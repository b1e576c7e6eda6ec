package queue

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/sse"
	"github.com/musictaggerz/tagger-server/internal/store"
)

type procCall struct {
	albumID   string
	releaseID string
}

// fakeProcessor records calls and delegates the outcome to fn, which
// receives the 1-based attempt number for that album.
type fakeProcessor struct {
	mu    sync.Mutex
	calls []procCall
	fn    func(albumID string, attempt int) error
}

func (p *fakeProcessor) ProcessAlbum(_ context.Context, albumID, releaseID string) error {
	p.mu.Lock()
	p.calls = append(p.calls, procCall{albumID: albumID, releaseID: releaseID})
	attempt := 0
	for _, c := range p.calls {
		if c.albumID == albumID {
			attempt++
		}
	}
	fn := p.fn
	p.mu.Unlock()

	if fn != nil {
		return fn(albumID, attempt)
	}
	return nil
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProcessor) albumOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	order := make([]string, len(p.calls))
	for i, c := range p.calls {
		order[i] = c.albumID
	}
	return order
}

func newTestManager(t *testing.T, proc Processor, maxRetries int) (*Manager, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.DiscardHandler)
	m := New(st, proc, sse.NewManager(logger), config.MatchingConfig{MaxRetries: maxRetries}, logger)
	m.backoffWait = time.Millisecond
	return m, st
}

func storeAlbum(t *testing.T, st *store.Store, id string, status domain.AlbumStatus) *domain.Album {
	t.Helper()

	now := time.Now()
	album := &domain.Album{
		Entity: domain.Entity{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Path:      "/music/Artist/Album " + id,
		Artist:    "Artist",
		Title:     "Album " + id,
		Status:    status,
		DiscCount: 1,
	}
	require.NoError(t, st.CreateAlbum(context.Background(), album))
	return album
}

func TestEnqueueAndProcess(t *testing.T) {
	proc := &fakeProcessor{}
	m, _ := newTestManager(t, proc, 3)
	m.Start()
	defer m.Stop()

	assert.True(t, m.Enqueue("alb_1", Options{ReleaseID: "rel-1"}))

	require.Eventually(t, func() bool {
		return proc.callCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	proc.mu.Lock()
	call := proc.calls[0]
	proc.mu.Unlock()
	assert.Equal(t, "alb_1", call.albumID)
	assert.Equal(t, "rel-1", call.releaseID)

	require.Eventually(t, func() bool {
		stats := m.Stats()
		return stats.Size == 0 && stats.Processing == ""
	}, 3*time.Second, 10*time.Millisecond)
}

func TestEnqueueDeduplicates(t *testing.T) {
	m, _ := newTestManager(t, &fakeProcessor{}, 3)

	assert.True(t, m.Enqueue("alb_1", Options{}))
	assert.False(t, m.Enqueue("alb_1", Options{}))
	assert.True(t, m.Enqueue("alb_2", Options{}))

	assert.Equal(t, 2, m.Stats().Size)
}

func TestEnqueueForceRestartsQueuedJob(t *testing.T) {
	proc := &fakeProcessor{}
	m, _ := newTestManager(t, proc, 3)

	require.True(t, m.Enqueue("alb_1", Options{}))
	require.True(t, m.Enqueue("alb_1", Options{ReleaseID: "rel-pinned", Force: true}))
	require.Equal(t, 1, m.Stats().Size)

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return proc.callCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, "rel-pinned", proc.calls[0].releaseID)
}

func TestFailedJobRequeuesAtBack(t *testing.T) {
	proc := &fakeProcessor{
		fn: func(albumID string, attempt int) error {
			if albumID == "alb_flaky" && attempt == 1 {
				return errors.New("search timed out")
			}
			return nil
		},
	}
	m, st := newTestManager(t, proc, 3)
	storeAlbum(t, st, "alb_flaky", domain.StatusPending)

	m.Enqueue("alb_flaky", Options{})
	m.Enqueue("alb_ok", Options{})
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return proc.callCount() == 3
	}, 3*time.Second, 10*time.Millisecond)

	// The retry runs after the job that was already waiting.
	assert.Equal(t, []string{"alb_flaky", "alb_ok", "alb_flaky"}, proc.albumOrder())

	album, err := st.GetAlbum(context.Background(), "alb_flaky")
	require.NoError(t, err)
	assert.Equal(t, 1, album.RetryCount)
}

func TestExhaustedJobMarksAlbumFailed(t *testing.T) {
	proc := &fakeProcessor{
		fn: func(string, int) error {
			return errors.New("musicbrainz unavailable")
		},
	}
	m, st := newTestManager(t, proc, 2)
	storeAlbum(t, st, "alb_doomed", domain.StatusPending)

	m.Enqueue("alb_doomed", Options{})
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		album, err := st.GetAlbum(context.Background(), "alb_doomed")
		return err == nil && album.Status == domain.StatusFailed
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, proc.callCount())

	album, err := st.GetAlbum(context.Background(), "alb_doomed")
	require.NoError(t, err)
	assert.Equal(t, 2, album.RetryCount)
	assert.Contains(t, album.ErrorMessage, "musicbrainz unavailable")
}

func TestNoRetryAfterNeedsReview(t *testing.T) {
	var st *store.Store
	proc := &fakeProcessor{
		fn: func(albumID string, _ int) error {
			// The pipeline parked the album for review before the
			// attempt errored out.
			album, err := st.GetAlbum(context.Background(), albumID)
			if err != nil {
				return err
			}
			album.Status = domain.StatusNeedsReview
			if err := st.UpdateAlbum(context.Background(), album); err != nil {
				return err
			}
			return errors.New("low confidence")
		},
	}
	m, testStore := newTestManager(t, proc, 3)
	st = testStore
	storeAlbum(t, st, "alb_review", domain.StatusPending)

	m.Enqueue("alb_review", Options{})
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return proc.callCount() == 1 && m.Stats().Processing == ""
	}, 3*time.Second, 10*time.Millisecond)

	// Give a potential retry a chance to show up.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, proc.callCount())

	album, err := st.GetAlbum(context.Background(), "alb_review")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsReview, album.Status)
}

func TestStatsReflectsQueueDepth(t *testing.T) {
	m, _ := newTestManager(t, &fakeProcessor{}, 3)

	assert.Equal(t, Stats{}, m.Stats())

	m.Enqueue("alb_1", Options{})
	m.Enqueue("alb_2", Options{})
	m.Enqueue("alb_3", Options{})

	stats := m.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Empty(t, stats.Processing)
}

func TestStopWaitsForWorker(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	proc := &fakeProcessor{
		fn: func(string, int) error {
			close(started)
			<-release
			return nil
		},
	}
	m, _ := newTestManager(t, proc, 3)
	m.Enqueue("alb_slow", Options{})
	m.Start()

	<-started
	assert.Equal(t, "alb_slow", m.Stats().Processing)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return after the job finished")
	}
}
