package artwork

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// coverBaseNames lists accepted cover file names in priority order.
var coverBaseNames = []string{"cover", "front", "folder", "albumart", "album", "artwork"}

var coverExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// folderSource finds cover art that already lives in the album folder.
type folderSource struct {
	logger *slog.Logger
}

func (*folderSource) Name() string { return "filesystem" }

func (s *folderSource) Fetch(_ context.Context, q Query) (*Cover, error) {
	entries, err := os.ReadDir(q.Folder)
	if err != nil {
		return nil, err
	}

	// Matching is case-insensitive; "Cover.JPG" counts.
	byBase := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		if _, ok := coverExtensions[ext]; !ok {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		if _, taken := byBase[base]; !taken {
			byBase[base] = e.Name()
		}
	}

	for _, base := range coverBaseNames {
		name, ok := byBase[base]
		if !ok {
			continue
		}
		path := filepath.Join(q.Folder, name)
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			continue
		}
		s.logger.Debug("found folder cover", slog.String("path", path))
		return &Cover{
			Data: data,
			MIME: coverExtensions[strings.ToLower(filepath.Ext(name))],
			Path: path,
		}, nil
	}
	return nil, nil
}
