// Package processor turns filesystem observations into stored albums and
// queued tagging work. Full library scans and watcher events funnel into
// the same reconcile path: the album folder is re-read from disk, the
// stored record is brought in line with it, and anything new or changed
// is handed to the matching queue.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/id"
	"github.com/musictaggerz/tagger-server/internal/queue"
	"github.com/musictaggerz/tagger-server/internal/scanner"
	"github.com/musictaggerz/tagger-server/internal/sse"
	"github.com/musictaggerz/tagger-server/internal/store"
	"github.com/musictaggerz/tagger-server/internal/watcher"
)

// Enqueuer hands albums to the matching queue.
type Enqueuer interface {
	Enqueue(albumID string, opts queue.Options) bool
}

// Processor reconciles album folders on disk with the store.
type Processor struct {
	store   *store.Store
	scanner *scanner.Scanner
	queue   Enqueuer
	emitter *sse.Manager
	logger  *slog.Logger
	locks   *folderLocks
}

func New(st *store.Store, sc *scanner.Scanner, q Enqueuer, emitter *sse.Manager, logger *slog.Logger) *Processor {
	return &Processor{
		store:   st,
		scanner: sc,
		queue:   q,
		emitter: emitter,
		logger:  logger,
		locks:   newFolderLocks(),
	}
}

// ScanResult summarizes a full library scan.
type ScanResult struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// ScanLibrary walks the whole library root, upserts every album folder it
// finds and deletes albums whose folders have vanished. New and changed
// albums are queued for matching; with force set, every album is re-read
// and re-queued regardless of what changed.
func (p *Processor) ScanLibrary(ctx context.Context, root string, force bool) (*ScanResult, error) {
	root = filepath.Clean(root)

	p.logger.Info("library scan started",
		slog.String("path", root),
		slog.Bool("force", force),
	)
	p.emitter.Emit(sse.NewScanStartedEvent(root))

	folders, notices, err := p.scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	for _, n := range notices {
		p.logger.Warn("scan notice",
			slog.String("path", n.Path),
			slog.String("message", n.Message),
		)
		p.emitter.Emit(sse.NewNoticeEvent("warning", n.Path+": "+n.Message))
	}

	known, err := p.store.ListAllAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	byPath := make(map[string]*domain.Album, len(known))
	for _, a := range known {
		byPath[a.Path] = a
	}

	result := &ScanResult{}
	seen := make(map[string]struct{}, len(folders))
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[folder.Path] = struct{}{}

		outcome, album, err := p.upsertFolder(ctx, folder, force)
		if err != nil {
			p.logger.Error("failed to process album folder",
				slog.String("path", folder.Path),
				slog.Any("error", err),
			)
			p.emitter.Emit(sse.NewNoticeEvent("error", folder.Path+": "+err.Error()))
			continue
		}
		switch outcome {
		case upsertCreated:
			result.Added++
			p.enqueue(ctx, album, queue.Options{})
		case upsertChanged:
			result.Updated++
			p.enqueue(ctx, album, queue.Options{Force: force})
		default:
			result.Unchanged++
		}
	}

	// Albums under this root whose folders no longer exist.
	for path, album := range byPath {
		if _, ok := seen[path]; ok || !underRoot(root, path) {
			continue
		}
		if err := p.removeAlbum(ctx, album); err != nil {
			p.logger.Error("failed to remove vanished album",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		result.Removed++
	}

	p.logger.Info("library scan finished",
		slog.String("path", root),
		slog.Int("added", result.Added),
		slog.Int("updated", result.Updated),
		slog.Int("removed", result.Removed),
		slog.Int("unchanged", result.Unchanged),
	)
	p.emitter.Emit(sse.NewScanCompleteEvent(root, result.Added, result.Updated, result.Removed))
	return result, nil
}

// Run consumes watcher events until the context is cancelled or the
// watcher shuts down. Watcher notices surface as warning events on the
// event stream.
func (p *Processor) Run(ctx context.Context, w *watcher.Watcher) {
	events := w.Events()
	notices := w.Notices()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := p.HandleEvent(ctx, ev); err != nil {
				p.logger.Error("failed to handle file event",
					slog.String("path", ev.Path),
					slog.Any("error", err),
				)
			}
		case msg, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			p.emitter.Emit(sse.NewNoticeEvent("warning", msg))
		}
	}
}

// HandleEvent maps a watcher event to its album folder and reconciles
// that folder. Events for files the pipeline does not care about are
// dropped here.
func (p *Processor) HandleEvent(ctx context.Context, ev watcher.Event) error {
	folder := ev.Path
	info, err := os.Stat(ev.Path)
	switch {
	case err == nil && info.IsDir():
		// Polling fallback reports whole folders.
	case err == nil:
		if classifyFile(ev.Path) == fileIgnored {
			return nil
		}
		folder = filepath.Dir(ev.Path)
	default:
		// Path is gone. A recognized extension means it was a file;
		// anything else is treated as a removed folder.
		if classifyFile(ev.Path) != fileIgnored {
			folder = filepath.Dir(ev.Path)
		}
	}
	return p.ProcessFolder(ctx, p.scanner.AlbumRoot(folder))
}

// ProcessFolder reconciles a single album folder against the store.
// Concurrent calls for the same folder collapse into one: the stabilized
// watcher events for a freshly copied album all describe the same state.
func (p *Processor) ProcessFolder(ctx context.Context, folder string) error {
	mu := p.locks.get(folder)
	if !mu.TryLock() {
		p.logger.Debug("folder already being processed", slog.String("folder", folder))
		return nil
	}
	defer mu.Unlock()

	scanned, err := p.scanner.ScanFolder(ctx, folder)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		// Read failure, not a missing folder. The stored album stays
		// put so a permission flap cannot wipe match state.
		p.logger.Warn("folder unreadable, keeping stored album",
			slog.String("folder", folder),
			slog.Any("error", err),
		)
		p.emitter.Emit(sse.NewNoticeEvent("warning", folder+": "+err.Error()))
		return nil
	}
	if err != nil || scanned == nil || len(scanned.Tracks) == 0 {
		// Folder is gone or holds no audio anymore.
		album, gerr := p.store.GetAlbumByPath(ctx, folder)
		if errors.Is(gerr, store.ErrAlbumNotFound) {
			return nil
		}
		if gerr != nil {
			return gerr
		}
		return p.removeAlbum(ctx, album)
	}

	outcome, album, err := p.upsertFolder(ctx, *scanned, false)
	if err != nil {
		return err
	}
	if outcome != upsertUnchanged {
		p.enqueue(ctx, album, queue.Options{})
	}
	return nil
}

type upsertOutcome int

const (
	upsertUnchanged upsertOutcome = iota
	upsertCreated
	upsertChanged
)

func (p *Processor) upsertFolder(ctx context.Context, folder scanner.AlbumFolder, force bool) (upsertOutcome, *domain.Album, error) {
	existing, err := p.store.GetAlbumByPath(ctx, folder.Path)
	if errors.Is(err, store.ErrAlbumNotFound) {
		album, cerr := p.createAlbum(ctx, folder)
		if cerr != nil {
			return upsertUnchanged, nil, cerr
		}
		return upsertCreated, album, nil
	}
	if err != nil {
		return upsertUnchanged, nil, err
	}

	changed, err := p.reconcileAlbum(ctx, existing, folder, force)
	if err != nil {
		return upsertUnchanged, nil, err
	}
	if changed {
		return upsertChanged, existing, nil
	}
	return upsertUnchanged, existing, nil
}

func (p *Processor) createAlbum(ctx context.Context, folder scanner.AlbumFolder) (*domain.Album, error) {
	parsed, err := p.scanner.Parse(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", folder.Path, err)
	}

	album := &domain.Album{
		Path:      folder.Path,
		Artist:    parsed.Artist,
		Title:     parsed.Title,
		Year:      parsed.Year,
		Status:    domain.StatusPending,
		DiscCount: folder.DiscCount,
		Tracks:    parsed.Tracks,
	}
	album.ID = id.MustGenerate(id.PrefixAlbum)
	album.InitTimestamps()
	album.RecalculateTotals()

	if err := p.store.CreateAlbum(ctx, album); err != nil {
		return nil, fmt.Errorf("create album %s: %w", folder.Path, err)
	}

	p.logger.Info("album discovered",
		slog.String("album_id", album.ID),
		slog.String("album", album.DisplayName()),
		slog.Int("tracks", album.TrackCount),
	)
	p.recordActivity(ctx, album, domain.ActivityScanned,
		fmt.Sprintf("Found %d tracks", album.TrackCount))
	p.emitter.Emit(sse.NewAlbumCreatedEvent(album))
	return album, nil
}

// reconcileAlbum brings a stored album in line with the folder on disk.
// Without force, only a change in the set of track files counts; a forced
// reconcile always re-reads tags and resets the match state.
func (p *Processor) reconcileAlbum(ctx context.Context, album *domain.Album, folder scanner.AlbumFolder, force bool) (bool, error) {
	added, removed := diffTracks(album, folder)
	if !force && added == 0 && removed == 0 {
		return false, nil
	}

	parsed, err := p.scanner.Parse(ctx, folder)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", folder.Path, err)
	}
	p.mergeParsed(album, parsed, folder)

	album.ClearError()
	album.RetryCount = 0
	if force {
		album.ReleaseID = ""
		album.MatchConfidence = 0
	}
	if album.Status != domain.StatusPending && album.Status.CanTransition(domain.StatusPending) {
		if err := album.SetStatus(domain.StatusPending); err != nil {
			return false, err
		}
	}

	if err := p.store.UpdateAlbum(ctx, album); err != nil {
		return false, fmt.Errorf("update album %s: %w", album.ID, err)
	}

	msg := fmt.Sprintf("Tracks changed (+%d, -%d)", added, removed)
	if force {
		msg = "Rescanned"
	}
	p.logger.Info("album rescanned",
		slog.String("album_id", album.ID),
		slog.String("album", album.DisplayName()),
		slog.Int("added_tracks", added),
		slog.Int("removed_tracks", removed),
	)
	p.recordActivity(ctx, album, domain.ActivityScanned, msg)
	p.emitter.Emit(sse.NewAlbumUpdatedEvent(album))
	return true, nil
}

// mergeParsed replaces the album's local metadata with the parsed state,
// keeping track IDs for files that were already known.
func (p *Processor) mergeParsed(album *domain.Album, parsed *scanner.ParsedAlbum, folder scanner.AlbumFolder) {
	if parsed.Artist != "" {
		album.Artist = parsed.Artist
	}
	if parsed.Title != "" {
		album.Title = parsed.Title
	}
	if parsed.Year != 0 {
		album.Year = parsed.Year
	}
	album.DiscCount = folder.DiscCount

	tracks := make([]domain.Track, 0, len(parsed.Tracks))
	for _, track := range parsed.Tracks {
		if old := album.TrackByPath(track.Path); old != nil {
			track.ID = old.ID
		}
		tracks = append(tracks, track)
	}
	album.Tracks = tracks
	album.RecalculateTotals()
}

func (p *Processor) removeAlbum(ctx context.Context, album *domain.Album) error {
	if err := p.store.DeleteAlbum(ctx, album.ID); err != nil {
		return fmt.Errorf("delete album %s: %w", album.ID, err)
	}
	p.logger.Info("album removed",
		slog.String("album_id", album.ID),
		slog.String("album", album.DisplayName()),
		slog.String("path", album.Path),
	)
	p.emitter.Emit(sse.NewAlbumDeletedEvent(album.ID, time.Now()))
	return nil
}

func (p *Processor) enqueue(ctx context.Context, album *domain.Album, opts queue.Options) {
	if p.queue == nil {
		return
	}
	if !p.queue.Enqueue(album.ID, opts) {
		return
	}
	p.logger.Info("album queued for matching",
		slog.String("album_id", album.ID),
		slog.String("album", album.DisplayName()),
	)
	p.recordActivity(ctx, album, domain.ActivityQueued, "Queued for matching")
}

func (p *Processor) recordActivity(ctx context.Context, album *domain.Album, typ domain.ActivityType, message string) {
	activity := &domain.Activity{
		ID:         id.MustGenerate(id.PrefixActivity),
		Type:       typ,
		CreatedAt:  time.Now(),
		AlbumID:    album.ID,
		AlbumTitle: album.Title,
		Artist:     album.Artist,
		Message:    message,
	}
	if err := p.store.CreateActivity(ctx, activity); err != nil {
		p.logger.Error("failed to record activity",
			slog.String("album_id", album.ID),
			slog.Any("error", err),
		)
	}
}

// diffTracks counts audio files that appeared on disk or disappeared from
// it relative to the stored track list.
func diffTracks(album *domain.Album, folder scanner.AlbumFolder) (added, removed int) {
	onDisk := make(map[string]struct{}, len(folder.Tracks))
	for _, f := range folder.Tracks {
		onDisk[f.Path] = struct{}{}
		if album.TrackByPath(f.Path) == nil {
			added++
		}
	}
	for _, t := range album.Tracks {
		if _, ok := onDisk[t.Path]; !ok {
			removed++
		}
	}
	return added, removed
}

func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// folderLocks hands out one mutex per album folder so overlapping events
// for the same folder collapse into a single rescan.
type folderLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newFolderLocks() *folderLocks {
	return &folderLocks{m: make(map[string]*sync.Mutex)}
}

func (l *folderLocks) get(folder string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.m[folder]
	if !ok {
		m = &sync.Mutex{}
		l.m[folder] = m
	}
	return m
}
