// Package queue implements the single-worker FIFO tagging queue.
//
// Albums are processed strictly in arrival order by one worker goroutine,
// which keeps MusicBrainz traffic serialized behind the client's rate
// limiter. Failed jobs are re-appended at the back of the queue with a
// short backoff until their attempts are exhausted.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/id"
	"github.com/musictaggerz/tagger-server/internal/sse"
	"github.com/musictaggerz/tagger-server/internal/store"
)

const (
	// pollInterval guards against a missed wakeup signal.
	pollInterval = 2 * time.Second

	// retryBackoff is the pause after a failed attempt before the worker
	// picks up the next job.
	retryBackoff = 2 * time.Second
)

// Processor runs the tagging pipeline for a single album. A non-nil error
// marks the attempt as failed and makes it eligible for retry; outcomes
// that need no retry (needs_review, skipped) return nil.
type Processor interface {
	ProcessAlbum(ctx context.Context, albumID, releaseID string) error
}

// Options controls how an album is enqueued.
type Options struct {
	// ReleaseID pins the job to a specific MusicBrainz release,
	// bypassing search and scoring.
	ReleaseID string

	// Force restarts a job that is already queued or in flight. A job in
	// flight is never interrupted; it is queued again behind the current
	// run instead.
	Force bool
}

// Job is a single unit of work in the queue.
type Job struct {
	ID        string
	AlbumID   string
	ReleaseID string
	Attempts  int
	CreatedAt time.Time
}

// Stats is a point-in-time snapshot of the queue.
type Stats struct {
	// Size is the number of jobs waiting, excluding the one in flight.
	Size int `json:"size"`
	// Processing is the album ID currently being worked on, if any.
	Processing string `json:"processing,omitempty"`
}

// Manager owns the FIFO queue and its single worker goroutine.
type Manager struct {
	store       *store.Store
	processor   Processor
	emitter     *sse.Manager
	logger      *slog.Logger
	maxAttempts int
	backoffWait time.Duration

	mu         sync.Mutex
	jobs       []*Job
	queued     map[string]*Job // album ID -> waiting job
	processing string          // album ID in flight, "" when idle

	ctx    context.Context //nolint:containedctx // Context needed for worker lifecycle management
	cancel context.CancelFunc
	wg     sync.WaitGroup
	notify chan struct{}
}

// New creates a queue manager. Call Start to launch the worker.
func New(
	st *store.Store,
	processor Processor,
	emitter *sse.Manager,
	cfg config.MatchingConfig,
	logger *slog.Logger,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:       st,
		processor:   processor,
		emitter:     emitter,
		logger:      logger,
		maxAttempts: cfg.MaxRetries,
		backoffWait: retryBackoff,
		queued:      make(map[string]*Job),
		ctx:         ctx,
		cancel:      cancel,
		notify:      make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.worker()
	m.logger.Info("queue manager started")
}

// Stop shuts the queue down. The job in flight finishes its current
// attempt; waiting jobs are dropped.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("queue manager stopped")
}

// Enqueue adds an album to the back of the queue. It reports whether the
// album was accepted: an album that is already queued or in flight is a
// no-op unless opts.Force is set.
func (m *Manager) Enqueue(albumID string, opts Options) bool {
	m.mu.Lock()

	if existing, ok := m.queued[albumID]; ok {
		if !opts.Force {
			m.mu.Unlock()
			m.logger.Debug("album already queued", slog.String("album_id", albumID))
			return false
		}
		// Restart in place: fresh attempts, updated release pin.
		existing.ReleaseID = opts.ReleaseID
		existing.Attempts = 0
		m.mu.Unlock()
		m.logger.Info("restarted queued job", slog.String("album_id", albumID))
		return true
	}

	if m.processing == albumID && !opts.Force {
		m.mu.Unlock()
		m.logger.Debug("album already in flight", slog.String("album_id", albumID))
		return false
	}

	job := &Job{
		ID:        id.MustGenerate(id.PrefixJob),
		AlbumID:   albumID,
		ReleaseID: opts.ReleaseID,
		CreatedAt: time.Now(),
	}
	m.jobs = append(m.jobs, job)
	m.queued[albumID] = job
	size := len(m.jobs)
	m.mu.Unlock()

	m.logger.Info("queued album",
		slog.String("album_id", albumID),
		slog.String("job_id", job.ID),
		slog.Int("queue_size", size),
	)
	m.emitQueueUpdated()
	m.notifyWorker()
	return true
}

// Stats returns a snapshot of queue depth and the album in flight.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Size: len(m.jobs), Processing: m.processing}
}

// notifyWorker signals the worker that a job is available.
func (m *Manager) notifyWorker() {
	select {
	case m.notify <- struct{}{}:
	default:
		// Already notified
	}
}

func (m *Manager) emitQueueUpdated() {
	stats := m.Stats()
	m.emitter.Emit(sse.NewQueueUpdatedEvent(stats.Size, stats.Processing))
}

// worker drains the queue until the manager is stopped.
func (m *Manager) worker() {
	defer m.wg.Done()

	m.logger.Debug("queue worker started")

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Debug("queue worker stopping")
			return
		case <-m.notify:
			m.drain()
		case <-time.After(pollInterval):
			m.drain()
		}
	}
}

// drain processes jobs one at a time until the queue is empty.
func (m *Manager) drain() {
	for m.ctx.Err() == nil {
		job := m.next()
		if job == nil {
			return
		}
		m.run(job)
	}
}

// next claims the job at the front of the queue, or nil if it is empty.
func (m *Manager) next() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) == 0 {
		return nil
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	delete(m.queued, job.AlbumID)
	m.processing = job.AlbumID
	return job
}

// run executes a single attempt and routes failures to the retry policy.
func (m *Manager) run(job *Job) {
	defer func() {
		m.mu.Lock()
		m.processing = ""
		m.mu.Unlock()
		m.emitQueueUpdated()
	}()

	m.emitQueueUpdated()
	m.logger.Info("processing album",
		slog.String("album_id", job.AlbumID),
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.Attempts+1),
	)

	err := m.processor.ProcessAlbum(m.ctx, job.AlbumID, job.ReleaseID)
	job.Attempts++
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	m.logger.Error("album processing failed",
		slog.String("album_id", job.AlbumID),
		slog.Int("attempt", job.Attempts),
		slog.Any("error", err),
	)
	m.handleFailure(job, err)
}

// handleFailure requeues a failed job at the back of the queue, or marks
// the album failed once attempts are exhausted. Albums that landed in
// needs_review or skipped are terminal for this job and are not retried.
func (m *Manager) handleFailure(job *Job, procErr error) {
	album, err := m.store.GetAlbum(m.ctx, job.AlbumID)
	if err != nil {
		m.logger.Error("failed to load album after attempt",
			slog.String("album_id", job.AlbumID),
			slog.Any("error", err),
		)
		return
	}

	if album.Status == domain.StatusNeedsReview || album.Status == domain.StatusSkipped {
		m.logger.Info("not retrying album",
			slog.String("album_id", job.AlbumID),
			slog.String("status", string(album.Status)),
		)
		return
	}

	if job.Attempts < m.maxAttempts {
		m.requeue(job, album)
		m.backoff()
		return
	}

	m.exhaust(job, album, procErr)
}

// requeue puts the job at the back of the queue and records the attempt
// count on the album.
func (m *Manager) requeue(job *Job, album *domain.Album) {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.queued[job.AlbumID] = job
	m.mu.Unlock()

	m.logger.Info("requeued album",
		slog.String("album_id", job.AlbumID),
		slog.Int("attempt", job.Attempts),
		slog.Int("max_attempts", m.maxAttempts),
	)

	album.RetryCount = job.Attempts
	if err := m.store.UpdateAlbum(m.ctx, album); err != nil {
		m.logger.Error("failed to record retry count",
			slog.String("album_id", job.AlbumID),
			slog.Any("error", err),
		)
	}
	m.emitQueueUpdated()
}

// exhaust marks the album failed and surfaces a notice.
func (m *Manager) exhaust(job *Job, album *domain.Album, procErr error) {
	m.logger.Warn("max attempts reached",
		slog.String("album_id", job.AlbumID),
		slog.Int("attempts", job.Attempts),
	)

	old := album.Status
	album.RetryCount = job.Attempts
	album.SetError(procErr.Error())
	changed := album.Status.CanTransition(domain.StatusFailed) &&
		album.SetStatus(domain.StatusFailed) == nil
	if err := m.store.UpdateAlbum(m.ctx, album); err != nil {
		m.logger.Error("failed to mark album failed",
			slog.String("album_id", job.AlbumID),
			slog.Any("error", err),
		)
	}
	if changed {
		m.emitter.Emit(sse.NewStatusChangedEvent(album, old))
	}

	m.emitter.Emit(sse.NewNoticeEvent("warning",
		fmt.Sprintf("Gave up on %q after %d attempts: %v", album.DisplayName(), job.Attempts, procErr)))
}

// backoff pauses the worker briefly so a transient failure is not
// hammered in a tight loop.
func (m *Manager) backoff() {
	select {
	case <-m.ctx.Done():
	case <-time.After(m.backoffWait):
	}
}
