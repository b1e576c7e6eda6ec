package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/musictaggerz/tagger-server/internal/domain"
	apperrors "github.com/musictaggerz/tagger-server/internal/errors"
)

func (s *Server) registerBackupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAlbumBackups",
		Method:      http.MethodGet,
		Path:        "/api/v1/albums/{id}/backups",
		Summary:     "List tag backups",
		Description: "Returns the pre-write tag snapshots of an album, newest first",
		Tags:        []string{"Backups"},
	}, s.handleListBackups)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/albums/{id}/backups/{backupID}/restore",
		Summary:     "Restore tag backup",
		Description: "Writes the snapshot back to the album's files",
		Tags:        []string{"Backups"},
	}, s.handleRestoreBackup)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBackup",
		Method:        http.MethodDelete,
		Path:          "/api/v1/albums/{id}/backups/{backupID}",
		Summary:       "Delete tag backup",
		DefaultStatus: http.StatusNoContent,
		Tags:          []string{"Backups"},
	}, s.handleDeleteBackup)
}

type ListBackupsInput struct {
	ID    string `path:"id" doc:"Album ID"`
	Limit int    `query:"limit" minimum:"1" maximum:"50" required:"false" doc:"Maximum entries, default 20"`
}

type BackupsOutput struct {
	Body []*domain.TagBackup
}

func (s *Server) handleListBackups(ctx context.Context, input *ListBackupsInput) (*BackupsOutput, error) {
	if _, err := s.store.GetAlbum(ctx, input.ID); err != nil {
		return nil, err
	}
	limit := input.Limit
	if limit == 0 {
		limit = 20
	}
	backups, err := s.store.ListAlbumBackups(ctx, input.ID, limit)
	if err != nil {
		return nil, err
	}
	return &BackupsOutput{Body: backups}, nil
}

type BackupIDInput struct {
	ID       string `path:"id" doc:"Album ID"`
	BackupID string `path:"backupID" doc:"Backup ID"`
}

// albumBackup loads a backup and checks it belongs to the album in the URL.
func (s *Server) albumBackup(ctx context.Context, albumID, backupID string) (*domain.TagBackup, error) {
	backup, err := s.store.GetBackup(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if backup.AlbumID != albumID {
		return nil, apperrors.NotFoundf("backup %s does not belong to album %s", backupID, albumID)
	}
	return backup, nil
}

type RestoreResult struct {
	Restored int `json:"restored"`
	Total    int `json:"total"`
}

type RestoreOutput struct {
	Body RestoreResult
}

func (s *Server) handleRestoreBackup(ctx context.Context, input *BackupIDInput) (*RestoreOutput, error) {
	if _, err := s.albumBackup(ctx, input.ID, input.BackupID); err != nil {
		return nil, err
	}
	restored, total, err := s.backups.Restore(ctx, input.BackupID)
	if err != nil {
		return nil, err
	}
	return &RestoreOutput{Body: RestoreResult{Restored: restored, Total: total}}, nil
}

func (s *Server) handleDeleteBackup(ctx context.Context, input *BackupIDInput) (*struct{}, error) {
	if _, err := s.albumBackup(ctx, input.ID, input.BackupID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteBackup(ctx, input.BackupID); err != nil {
		return nil, err
	}
	return nil, nil
}
