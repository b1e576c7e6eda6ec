package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Walker traverses the filesystem and discovers files.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a new walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{
		logger: logger,
	}
}

// Walk traverses a directory tree and streams discovered files.
// Unreadable directories are reported as results carrying an error and the
// walk continues. The channel closes when the walk completes or the context
// is canceled.
func (w *Walker) Walk(ctx context.Context, rootPath string) <-chan WalkResult {
	results := make(chan WalkResult, 100)

	go func() {
		defer close(results)

		err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				w.logger.Warn("walk error", "path", path, "error", err)
				select {
				case results <- WalkResult{Path: path, Error: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			}

			// Skip hidden files/directories.
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				w.logger.Warn("failed to get file info", "path", path, "error", err)
				return nil
			}

			relPath, err := filepath.Rel(rootPath, path)
			if err != nil {
				relPath = path
			}

			result := WalkResult{
				Path:    path,
				RelPath: relPath,
				Size:    info.Size(),
				ModTime: info.ModTime().UnixMilli(),
			}

			select {
			case results <- result:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("walk failed", "root", rootPath, "error", err)
		}
	}()

	return results
}

// WalkFolder walks a single album folder non-recursively, descending only
// into disc subfolders matched by discs.
func (w *Walker) WalkFolder(ctx context.Context, folderPath string, discs *DiscMatcher) <-chan WalkResult {
	results := make(chan WalkResult, 100)

	go func() {
		defer close(results)

		entries, err := os.ReadDir(folderPath)
		if err != nil {
			w.logger.Warn("failed to read directory", "path", folderPath, "error", err)
			results <- WalkResult{Path: folderPath, Error: err}
			return
		}

		dirsToScan := []string{folderPath}
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if _, ok := discs.Match(entry.Name()); ok {
				dirsToScan = append(dirsToScan, filepath.Join(folderPath, entry.Name()))
			}
		}

		for _, dir := range dirsToScan {
			select {
			case <-ctx.Done():
				return
			default:
			}

			dirEntries, err := os.ReadDir(dir)
			if err != nil {
				w.logger.Warn("failed to read directory", "path", dir, "error", err)
				results <- WalkResult{Path: dir, Error: err}
				continue
			}

			for _, entry := range dirEntries {
				if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
					continue
				}

				path := filepath.Join(dir, entry.Name())
				info, err := entry.Info()
				if err != nil {
					w.logger.Warn("failed to get file info", "path", path, "error", err)
					continue
				}

				relPath, err := filepath.Rel(folderPath, path)
				if err != nil {
					relPath = entry.Name()
				}

				result := WalkResult{
					Path:    path,
					RelPath: relPath,
					Size:    info.Size(),
					ModTime: info.ModTime().UnixMilli(),
				}

				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}
