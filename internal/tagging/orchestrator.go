// Package tagging runs the per-album tagging pipeline: read local tags,
// search MusicBrainz, score the candidates, and apply the winning release
// to the files and the store.
package tagging

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/errors"
	"github.com/musictaggerz/tagger-server/internal/genre"
	"github.com/musictaggerz/tagger-server/internal/id"
	"github.com/musictaggerz/tagger-server/internal/matcher"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
	"github.com/musictaggerz/tagger-server/internal/scanner"
	"github.com/musictaggerz/tagger-server/internal/sse"
	"github.com/musictaggerz/tagger-server/internal/store"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

// searchLimit caps how many releases one search round-trip considers.
const searchLimit = 10

// Searcher finds candidate releases in the external catalog.
// *musicbrainz.Client satisfies it.
type Searcher interface {
	SearchDetailed(ctx context.Context, artist, album string, limit int) ([]*musicbrainz.Release, error)
	GetRelease(ctx context.Context, releaseID string) (*musicbrainz.Release, error)
}

// Library reads album folders from disk. *scanner.Scanner satisfies it.
type Library interface {
	ScanFolder(ctx context.Context, folderPath string) (*scanner.AlbumFolder, error)
	Parse(ctx context.Context, folder scanner.AlbumFolder) (*scanner.ParsedAlbum, error)
}

// CoverArt locates artwork for a tagged album, saves and embeds it, and
// records the cover path on the album. A nil CoverArt disables artwork.
type CoverArt interface {
	Apply(ctx context.Context, album *domain.Album, release *musicbrainz.Release) error
}

// Orchestrator drives one album through the pipeline state machine.
// It is invoked by the queue worker, one album at a time.
type Orchestrator struct {
	store   *store.Store
	library Library
	mb      Searcher
	scorer  *matcher.Scorer
	writer  tags.Writer
	artwork CoverArt
	backups *BackupManager
	emitter *sse.Manager
	logger  *slog.Logger
}

// New creates an orchestrator.
func New(
	st *store.Store,
	library Library,
	mb Searcher,
	scorer *matcher.Scorer,
	writer tags.Writer,
	artwork CoverArt,
	backups *BackupManager,
	emitter *sse.Manager,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:   st,
		library: library,
		mb:      mb,
		scorer:  scorer,
		writer:  writer,
		artwork: artwork,
		backups: backups,
		emitter: emitter,
		logger:  logger,
	}
}

// ProcessAlbum runs the full pipeline for one album. A non-empty releaseID
// pins the album to that release, bypassing search and scoring. A non-nil
// error means the attempt failed and the queue may retry it.
func (o *Orchestrator) ProcessAlbum(ctx context.Context, albumID, releaseID string) error {
	album, err := o.store.GetAlbum(ctx, albumID)
	if err != nil {
		return fmt.Errorf("load album %s: %w", albumID, err)
	}

	o.logger.Info("processing album",
		slog.String("album_id", album.ID),
		slog.String("album", album.DisplayName()),
	)

	if err := o.transition(ctx, album, domain.StatusMatching); err != nil {
		return err
	}
	o.progress(album.ID, sse.StageReading, "Reading file tags")

	parsed, err := o.readFolder(ctx, album)
	if err != nil {
		return o.fail(ctx, album, "could not read audio files", err)
	}
	o.refreshFromParsed(album, parsed)

	if releaseID != "" {
		return o.tagWithRelease(ctx, album, releaseID)
	}

	o.progress(album.ID, sse.StageSearching, fmt.Sprintf("Searching for %s - %s", album.Artist, album.Title))
	// Embedded release IDs in the files are never trusted; every attempt
	// searches by text from scratch.
	releases, err := o.mb.SearchDetailed(ctx, album.Artist, album.Title, searchLimit)
	if err != nil {
		return o.fail(ctx, album, "musicbrainz search failed", err)
	}

	o.progress(album.ID, sse.StageScoring, fmt.Sprintf("Scoring %d candidates", len(releases)))
	scores := o.scorer.ScoreAll(album, releases)
	if len(scores) == 0 {
		o.recordActivity(ctx, album, domain.ActivityMatchFailed, "No results", 0)
		return o.reject(ctx, album, "no matches found")
	}
	o.storeCandidates(ctx, album.ID, scores)

	best := scores[0]
	album.MatchConfidence = best.Total

	o.logger.Info("best match",
		slog.String("album_id", album.ID),
		slog.String("release_id", best.Release.ID),
		slog.String("release", best.Release.Artist+" - "+best.Release.Title),
		slog.Float64("score", best.Total),
	)

	switch o.scorer.Decide(best.Total) {
	case matcher.DecisionAutoTag:
		return o.applyRelease(ctx, album, best.Release)

	case matcher.DecisionNeedsReview:
		if err := o.transition(ctx, album, domain.StatusNeedsReview); err != nil {
			return err
		}
		o.recordActivity(ctx, album, domain.ActivityNeedsReview,
			fmt.Sprintf("Best: %s (%.0f%%)", best.Release.Title, best.Total), best.Total)
		return nil

	default:
		o.recordActivity(ctx, album, domain.ActivityMatchFailed,
			fmt.Sprintf("Low confidence (%.0f%%)", best.Total), best.Total)
		return o.reject(ctx, album, "no usable candidate")
	}
}

// Skip excludes an album from tagging until it is explicitly requeued.
func (o *Orchestrator) Skip(ctx context.Context, albumID string) (*domain.Album, error) {
	album, err := o.store.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if album.Status == domain.StatusSkipped {
		return album, nil
	}
	if err := o.transition(ctx, album, domain.StatusSkipped); err != nil {
		return nil, err
	}
	o.recordActivity(ctx, album, domain.ActivitySkipped, "", 0)
	return album, nil
}

// MarkPending resets an album so it can be enqueued again. Used by the
// retag and requeue actions; the caller enqueues afterwards.
func (o *Orchestrator) MarkPending(ctx context.Context, albumID string) (*domain.Album, error) {
	album, err := o.store.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if album.Status == domain.StatusPending {
		return album, nil
	}
	album.ClearError()
	album.RetryCount = 0
	if err := o.transition(ctx, album, domain.StatusPending); err != nil {
		return nil, err
	}
	return album, nil
}

// tagWithRelease applies a caller-picked release without scoring.
func (o *Orchestrator) tagWithRelease(ctx context.Context, album *domain.Album, releaseID string) error {
	o.progress(album.ID, sse.StageSearching, "Fetching release "+releaseID)

	release, err := o.mb.GetRelease(ctx, releaseID)
	if err != nil {
		return o.fail(ctx, album, fmt.Sprintf("could not fetch release %s", releaseID), err)
	}

	if _, err := o.store.SelectCandidate(ctx, album.ID, releaseID); err != nil && !stderrors.Is(err, store.ErrNotFound) {
		o.logger.Warn("failed to mark selected candidate",
			slog.String("album_id", album.ID),
			slog.Any("error", err),
		)
	}

	album.MatchConfidence = 100
	return o.applyRelease(ctx, album, release)
}

// applyRelease writes the release's tags to every track, fetches artwork,
// and moves the album to tagged.
func (o *Orchestrator) applyRelease(ctx context.Context, album *domain.Album, release *musicbrainz.Release) error {
	o.progress(album.ID, sse.StageWriting, fmt.Sprintf("Writing tags for %s - %s", release.Artist, release.Title))

	if o.backups != nil {
		// Snapshot what is on disk before it gets overwritten. A failed
		// snapshot is logged but does not block tagging.
		if _, err := o.backups.Snapshot(ctx, album, domain.BackupActionTag); err != nil {
			o.logger.Warn("tag snapshot failed",
				slog.String("album_id", album.ID),
				slog.Any("error", err),
			)
		}
	}

	written, err := o.writeTracks(ctx, album, release)
	if err != nil {
		return err
	}
	if written == 0 {
		return o.fail(ctx, album, "failed to write tags", nil)
	}

	if o.artwork != nil {
		o.progress(album.ID, sse.StageArtwork, "Fetching cover art")
		if err := o.artwork.Apply(ctx, album, release); err != nil {
			// Artwork is best-effort; a tagged album without a cover
			// is still tagged.
			o.logger.Warn("artwork fetch failed",
				slog.String("album_id", album.ID),
				slog.Any("error", err),
			)
		}
	}

	year := release.OriginalYear
	if year == 0 {
		year = release.Year
	}
	album.Artist = release.Artist
	album.Title = release.Title
	album.Year = year
	album.ReleaseID = release.ID
	album.Label = release.Label
	album.Genres = genre.Normalize(release.Genres)
	album.ClearError()
	album.RecalculateTotals()

	if err := o.transition(ctx, album, domain.StatusTagged); err != nil {
		return err
	}
	o.recordActivity(ctx, album, domain.ActivityTagged,
		release.Artist+" - "+release.Title, album.MatchConfidence)

	o.logger.Info("album tagged",
		slog.String("album_id", album.ID),
		slog.String("release_id", release.ID),
		slog.Int("tracks_written", written),
	)
	return nil
}

// writeTracks applies tags to each local track, matched to the release's
// tracks by playback position. Per-track write failures are recorded on
// the track; the album fails only when nothing could be written.
func (o *Orchestrator) writeTracks(ctx context.Context, album *domain.Album, release *musicbrainz.Release) (int, error) {
	mbTracks := make([]musicbrainz.Track, len(release.Tracks))
	copy(mbTracks, release.Tracks)
	sort.Slice(mbTracks, func(i, j int) bool { return mbTracks[i].Position < mbTracks[j].Position })

	year := release.OriginalYear
	if year == 0 {
		year = release.Year
	}
	trackGenre := ""
	if genres := genre.Normalize(release.Genres); len(genres) > 0 {
		trackGenre = genres[0]
	}

	written := 0
	for i := range album.Tracks {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		track := &album.Tracks[i]

		t := &tags.TrackTags{
			Artist:      release.Artist,
			AlbumArtist: release.Artist,
			Album:       release.Title,
			Genre:       trackGenre,
			Year:        year,
			TrackNumber: track.TrackNumber,
			TrackTotal:  release.TrackCount,
			DiscNumber:  max(track.DiscNumber, 1),
			DiscTotal:   album.DiscCount,
			Title:       track.Title,
		}
		if i < len(mbTracks) {
			t.Title = mbTracks[i].Title
			t.TrackNumber = mbTracks[i].Position
		}

		if err := o.writer.WriteTags(ctx, track.Path, t); err != nil {
			o.logger.Warn("tag write failed",
				slog.String("album_id", album.ID),
				slog.String("path", track.Path),
				slog.Any("error", err),
			)
			track.WriteError = err.Error()
			continue
		}
		track.Title = t.Title
		track.Artist = release.Artist
		track.TrackNumber = t.TrackNumber
		track.WriteError = ""
		written++
	}

	o.logger.Info("tags written",
		slog.String("album_id", album.ID),
		slog.Int("written", written),
		slog.Int("total", len(album.Tracks)),
	)
	return written, nil
}

// readFolder re-reads the album folder from disk. The parsed view is
// rebuilt fresh on every attempt so a previous run's state cannot leak in.
func (o *Orchestrator) readFolder(ctx context.Context, album *domain.Album) (*scanner.ParsedAlbum, error) {
	folder, err := o.library.ScanFolder(ctx, album.Path)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, errors.ReadFailed(fmt.Sprintf("no audio files in %s", album.Path))
	}
	return o.library.Parse(ctx, *folder)
}

// refreshFromParsed replaces the album's local metadata with the freshly
// parsed state, keeping existing track IDs for files already known.
func (o *Orchestrator) refreshFromParsed(album *domain.Album, parsed *scanner.ParsedAlbum) {
	if parsed.Artist != "" {
		album.Artist = parsed.Artist
	}
	if parsed.Title != "" {
		album.Title = parsed.Title
	}
	if parsed.Year != 0 {
		album.Year = parsed.Year
	}
	album.DiscCount = parsed.Folder.DiscCount

	tracks := make([]domain.Track, len(parsed.Tracks))
	copy(tracks, parsed.Tracks)
	for i := range tracks {
		if existing := album.TrackByPath(tracks[i].Path); existing != nil {
			tracks[i].ID = existing.ID
		}
	}
	album.Tracks = tracks
	album.RecalculateTotals()
}

// storeCandidates persists the scored candidates for manual review, best
// first, with the top candidate pre-selected.
func (o *Orchestrator) storeCandidates(ctx context.Context, albumID string, scores []matcher.MatchScore) {
	candidates := make([]*domain.MatchCandidate, len(scores))
	for i, s := range scores {
		r := s.Release
		candidates[i] = &domain.MatchCandidate{
			ID:           id.MustGenerate(id.PrefixCandidate),
			AlbumID:      albumID,
			ReleaseID:    r.ID,
			Confidence:   s.Total,
			Artist:       r.Artist,
			Title:        r.Title,
			Year:         r.Year,
			OriginalYear: r.OriginalYear,
			TrackCount:   r.TrackCount,
			Country:      r.Country,
			Media:        r.Media,
			Label:        r.Label,
			Barcode:      r.Barcode,
			IsSelected:   i == 0,
			CreatedAt:    time.Now(),
		}
	}
	if err := o.store.ReplaceCandidates(ctx, albumID, candidates); err != nil {
		o.logger.Error("failed to store candidates",
			slog.String("album_id", albumID),
			slog.Any("error", err),
		)
	}
}

// transition moves the album to next and persists it, emitting a status
// change event. Re-entry from a terminal status goes through pending.
func (o *Orchestrator) transition(ctx context.Context, album *domain.Album, next domain.AlbumStatus) error {
	old := album.Status
	if old == next {
		return o.store.UpdateAlbum(ctx, album)
	}
	if !album.Status.CanTransition(next) && album.Status.CanTransition(domain.StatusPending) {
		if err := album.SetStatus(domain.StatusPending); err != nil {
			return err
		}
	}
	if err := album.SetStatus(next); err != nil {
		return err
	}
	if err := o.store.UpdateAlbum(ctx, album); err != nil {
		return err
	}
	o.emitter.Emit(sse.NewStatusChangedEvent(album, old))
	return nil
}

// fail records the error on the album, moves it to failed, and returns an
// error so the queue applies its retry policy.
func (o *Orchestrator) fail(ctx context.Context, album *domain.Album, msg string, cause error) error {
	album.SetError(msg)
	if cause != nil {
		album.SetError(fmt.Sprintf("%s: %v", msg, cause))
	}
	if err := o.transition(ctx, album, domain.StatusFailed); err != nil {
		o.logger.Error("failed to mark album failed",
			slog.String("album_id", album.ID),
			slog.Any("error", err),
		)
	}
	if cause != nil {
		return errors.Wrap(cause, errors.CodeInternal, msg)
	}
	return errors.Internal(msg)
}

// reject marks an album failed without signalling a retry. A search that
// found nothing usable is deterministic and would find the same nothing
// on every attempt.
func (o *Orchestrator) reject(ctx context.Context, album *domain.Album, msg string) error {
	album.SetError(msg)
	return o.transition(ctx, album, domain.StatusFailed)
}

func (o *Orchestrator) progress(albumID, stage, message string) {
	o.emitter.Emit(sse.NewTaggingProgressEvent(albumID, stage, message))
}

// recordActivity appends a feed entry; failures are logged, not fatal.
func (o *Orchestrator) recordActivity(ctx context.Context, album *domain.Album, typ domain.ActivityType, message string, confidence float64) {
	activity := &domain.Activity{
		ID:         id.MustGenerate(id.PrefixActivity),
		Type:       typ,
		CreatedAt:  time.Now(),
		AlbumID:    album.ID,
		AlbumTitle: album.Title,
		Artist:     album.Artist,
		Confidence: confidence,
		Message:    message,
	}
	if err := o.store.CreateActivity(ctx, activity); err != nil {
		o.logger.Error("failed to record activity",
			slog.String("album_id", album.ID),
			slog.Any("error", err),
		)
	}
}
