package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the watcher behavior.
type Options struct {
	// IgnorePatterns are base-name globs that never produce events.
	IgnorePatterns []string
	// StabilizationDelay is how long a path must stay quiet before an
	// event is emitted. It absorbs multi-file copy operations so a
	// half-copied album is never enqueued.
	StabilizationDelay time.Duration
	// PollInterval is the scan period of the polling fallback.
	PollInterval time.Duration
	// IgnoreHidden skips dotfiles and dot-directories.
	IgnoreHidden bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.StabilizationDelay == 0 {
		o.StabilizationDelay = 30 * time.Second
	}
	if o.PollInterval == 0 {
		o.PollInterval = time.Minute
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.part",
			"Thumbs.db",
		}
		// Also default to ignoring hidden files when no custom config
		// provided. Explicitly set patterns (even an empty slice) leave
		// the user's IgnoreHidden choice alone.
		o.IgnoreHidden = true
	}
}

// shouldIgnore checks if a path matches the ignore rules.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}
