package tagging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/id"
	"github.com/musictaggerz/tagger-server/internal/store"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

// maxBackupsPerAlbum caps how many snapshots one album accumulates.
// Older snapshots are pruned when a new one lands.
const maxBackupsPerAlbum = 5

// BackupManager snapshots the tags an album's files carry right before
// the pipeline overwrites them, and writes a snapshot back on restore.
type BackupManager struct {
	store  *store.Store
	reader tags.Reader
	writer tags.Writer
	logger *slog.Logger
}

func NewBackupManager(st *store.Store, reader tags.Reader, writer tags.Writer, logger *slog.Logger) *BackupManager {
	return &BackupManager{
		store:  st,
		reader: reader,
		writer: writer,
		logger: logger,
	}
}

// Snapshot reads the current tags of every track and stores them as a
// backup. Tracks that cannot be read are left out rather than failing
// the snapshot. Returns nil when no track could be captured.
func (b *BackupManager) Snapshot(ctx context.Context, album *domain.Album, action string) (*domain.TagBackup, error) {
	backup := &domain.TagBackup{
		ID:        id.MustGenerate(id.PrefixBackup),
		AlbumID:   album.ID,
		Action:    action,
		CreatedAt: time.Now(),
	}

	for i := range album.Tracks {
		track := &album.Tracks[i]
		current, err := b.reader.ReadTags(ctx, track.Path)
		if err != nil {
			b.logger.Warn("could not snapshot track tags",
				slog.String("path", track.Path),
				slog.Any("error", err),
			)
			continue
		}
		backup.Tracks = append(backup.Tracks, domain.TrackSnapshot{
			TrackID:     track.ID,
			Path:        track.Path,
			Title:       current.Title,
			Artist:      current.Artist,
			AlbumArtist: current.AlbumArtist,
			Album:       current.Album,
			Genre:       current.Genre,
			Year:        current.Year,
			TrackNumber: current.TrackNumber,
			TrackTotal:  current.TrackTotal,
			DiscNumber:  current.DiscNumber,
			DiscTotal:   current.DiscTotal,
		})
	}
	if len(backup.Tracks) == 0 {
		return nil, nil
	}

	if err := b.store.CreateBackup(ctx, backup); err != nil {
		return nil, err
	}
	if dropped, err := b.store.PruneBackups(ctx, album.ID, maxBackupsPerAlbum); err != nil {
		b.logger.Warn("failed to prune old backups",
			slog.String("album_id", album.ID),
			slog.Any("error", err),
		)
	} else if dropped > 0 {
		b.logger.Debug("pruned old backups",
			slog.String("album_id", album.ID),
			slog.Int("dropped", dropped),
		)
	}

	b.logger.Info("tag backup created",
		slog.String("backup_id", backup.ID),
		slog.String("album_id", album.ID),
		slog.Int("tracks", len(backup.Tracks)),
	)
	return backup, nil
}

// Restore writes a backup's snapshots back to disk and brings the stored
// track records in line with them. Files that vanished since the snapshot
// are skipped. Returns how many tracks were restored out of the total.
func (b *BackupManager) Restore(ctx context.Context, backupID string) (restored, total int, err error) {
	backup, err := b.store.GetBackup(ctx, backupID)
	if err != nil {
		return 0, 0, err
	}
	album, err := b.store.GetAlbum(ctx, backup.AlbumID)
	if err != nil {
		return 0, 0, err
	}

	total = len(backup.Tracks)
	for _, snap := range backup.Tracks {
		if err := ctx.Err(); err != nil {
			return restored, total, err
		}
		if _, err := os.Stat(snap.Path); err != nil {
			b.logger.Warn("restore target missing",
				slog.String("path", snap.Path),
			)
			continue
		}

		t := &tags.TrackTags{
			Title:       snap.Title,
			Artist:      snap.Artist,
			AlbumArtist: snap.AlbumArtist,
			Album:       snap.Album,
			Genre:       snap.Genre,
			Year:        snap.Year,
			TrackNumber: snap.TrackNumber,
			TrackTotal:  snap.TrackTotal,
			DiscNumber:  snap.DiscNumber,
			DiscTotal:   snap.DiscTotal,
		}
		if err := b.writer.WriteTags(ctx, snap.Path, t); err != nil {
			b.logger.Warn("restore write failed",
				slog.String("path", snap.Path),
				slog.Any("error", err),
			)
			continue
		}

		if track := album.TrackByPath(snap.Path); track != nil {
			track.Title = snap.Title
			track.Artist = snap.Artist
			if snap.TrackNumber != 0 {
				track.TrackNumber = snap.TrackNumber
			}
			if snap.DiscNumber != 0 {
				track.DiscNumber = snap.DiscNumber
			}
			track.WriteError = ""
		}
		restored++
	}

	if restored > 0 {
		album.Touch()
		if err := b.store.UpdateAlbum(ctx, album); err != nil {
			return restored, total, err
		}
	}

	b.logger.Info("tag backup restored",
		slog.String("backup_id", backupID),
		slog.String("album_id", backup.AlbumID),
		slog.Int("restored", restored),
		slog.Int("total", total),
	)
	return restored, total, nil
}
