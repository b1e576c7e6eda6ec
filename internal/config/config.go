// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Metadata    MetadataConfig
	Library     LibraryConfig
	Server      ServerConfig
	Matching    MatchingConfig
	Watcher     WatcherConfig
	MusicBrainz MusicBrainzConfig
	Artwork     ArtworkConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// MetadataConfig holds metadata storage configuration (database, covers, search index).
type MetadataConfig struct {
	BasePath string
}

// LibraryConfig holds music library configuration.
type LibraryConfig struct {
	MusicPath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// MatchingConfig holds the scoring thresholds and preference lists used when
// choosing a release for an album. A job snapshots this at enqueue time, so
// changing values at runtime never affects work already queued.
type MatchingConfig struct {
	// AutoTagThreshold is the minimum confidence for tagging without review (default: 85).
	AutoTagThreshold float64
	// ReviewThreshold is the minimum confidence for holding an album for manual review (default: 50).
	ReviewThreshold float64
	// PreferredCountries ranks release countries, best first.
	PreferredCountries []string
	// PreferredMedia ranks media formats, best first.
	PreferredMedia []string
	// MaxRetries is the number of attempts before an album is marked failed (default: 3).
	MaxRetries int
}

// WatcherConfig holds filesystem watching configuration.
type WatcherConfig struct {
	Enabled bool
	// StabilizationDelay is how long a path must stay quiet before it is
	// considered fully copied (default: 30s).
	StabilizationDelay time.Duration
	// PollInterval is the fallback scan interval when the native watcher
	// cannot be started (default: 60s).
	PollInterval time.Duration
}

// MusicBrainzConfig holds metadata search API configuration.
type MusicBrainzConfig struct {
	BaseURL string
	// UserAgent identifies this server to the API, as its etiquette requires.
	UserAgent string
	// MinInterval is the minimum spacing between requests (default: 1.1s).
	MinInterval time.Duration
}

// ArtworkConfig holds cover art configuration.
type ArtworkConfig struct {
	// Sources is the fetch order, e.g. filesystem, coverart, itunes.
	Sources []string
	// Embed writes the cover into each track's tags after a successful match.
	Embed bool
	// SaveFile writes cover.jpg into the album folder.
	SaveFile bool
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	metadataPath := flag.String("metadata-path", "", "Base path for metadata storage")
	musicPath := flag.String("music-path", "", "Path to the music library root")
	serverName := flag.String("server-name", "", "Name for the server")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Matching flags
	autoThreshold := flag.String("auto-tag-threshold", "", "Minimum confidence for automatic tagging (default: 85)")
	reviewThreshold := flag.String("review-threshold", "", "Minimum confidence for manual review (default: 50)")
	maxRetries := flag.String("max-retries", "", "Attempts before an album is marked failed (default: 3)")

	// Watcher flags
	watchEnabled := flag.String("watch", "", "Watch the library for changes (default: true)")
	stabilizationDelay := flag.String("watch-stabilization-delay", "", "Quiet period before a change is processed (default: 30s)")
	pollInterval := flag.String("watch-poll-interval", "", "Fallback polling interval (default: 60s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Metadata: MetadataConfig{
			BasePath: getConfigValue(*metadataPath, "METADATA_PATH", ""),
		},

		Library: LibraryConfig{
			MusicPath: getConfigValue(*musicPath, "MUSIC_PATH", "/music"),
		},

		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "Tagger Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},

		Matching: MatchingConfig{
			AutoTagThreshold:   getFloatConfigValue(*autoThreshold, "AUTO_TAG_THRESHOLD", 85.0),
			ReviewThreshold:    getFloatConfigValue(*reviewThreshold, "REVIEW_THRESHOLD", 50.0),
			PreferredCountries: getListConfigValue("", "PREFERRED_COUNTRIES", []string{"US", "GB", "DE", "IT"}),
			PreferredMedia:     getListConfigValue("", "PREFERRED_MEDIA", []string{"Digital Media", "CD"}),
			MaxRetries:         getIntConfigValue(*maxRetries, "MAX_RETRIES", 3),
		},

		Watcher: WatcherConfig{
			Enabled: getBoolConfigValue(*watchEnabled, "WATCH_ENABLED", true),
		},

		MusicBrainz: MusicBrainzConfig{
			BaseURL:   getConfigValue("", "MUSICBRAINZ_URL", "https://musicbrainz.org/ws/2"),
			UserAgent: getConfigValue("", "MUSICBRAINZ_USER_AGENT", "TaggerServer/1.0 (https://github.com/musictaggerz/tagger-server)"),
		},

		Artwork: ArtworkConfig{
			Sources:  getListConfigValue("", "ARTWORK_SOURCES", []string{"filesystem", "coverart", "itunes"}),
			Embed:    getBoolConfigValue("", "ARTWORK_EMBED", true),
			SaveFile: getBoolConfigValue("", "ARTWORK_SAVE_FILE", true),
		},
	}

	// Parse durations.
	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Watcher.StabilizationDelay, err = parseDurationValue(*stabilizationDelay, "WATCH_STABILIZATION_DELAY", "30s"); err != nil {
		return nil, err
	}
	if cfg.Watcher.PollInterval, err = parseDurationValue(*pollInterval, "WATCH_POLL_INTERVAL", "60s"); err != nil {
		return nil, err
	}
	if cfg.MusicBrainz.MinInterval, err = parseDurationValue("", "MUSICBRAINZ_MIN_INTERVAL", "1100ms"); err != nil {
		return nil, err
	}

	// Expand and validate metadata path.
	if err := cfg.expandMetadataPath(); err != nil {
		return nil, fmt.Errorf("invalid metadata path: %w", err)
	}

	// Expand and validate music path.
	if err := cfg.expandMusicPath(); err != nil {
		return nil, fmt.Errorf("invalid music path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Metadata.BasePath == "" {
		return errors.New("metadata base path cannot be empty after expansion")
	}

	if c.Library.MusicPath == "" {
		return errors.New("music path cannot be empty after expansion")
	}

	if c.Matching.AutoTagThreshold < c.Matching.ReviewThreshold {
		return fmt.Errorf("auto-tag threshold %.1f must not be below review threshold %.1f",
			c.Matching.AutoTagThreshold, c.Matching.ReviewThreshold)
	}
	if c.Matching.AutoTagThreshold > 100 || c.Matching.ReviewThreshold < 0 {
		return errors.New("thresholds must lie within [0, 100]")
	}

	if c.Matching.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.Matching.MaxRetries)
	}

	if c.Watcher.StabilizationDelay <= 0 {
		return errors.New("watch stabilization delay must be positive")
	}

	return nil
}

// DatabasePath returns the directory for the badger database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Metadata.BasePath, "db")
}

// SearchIndexPath returns the directory for the bleve search index.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Metadata.BasePath, "search")
}

// CoversPath returns the directory for cached cover images.
func (c *Config) CoversPath() string {
	return filepath.Join(c.Metadata.BasePath, "covers")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandMetadataPath expands ~ and makes the path absolute.
func (c *Config) expandMetadataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Tagger", "metadata")

	expanded, err := expandPath(c.Metadata.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Metadata.BasePath = expanded
	return nil
}

// expandMusicPath expands ~ and makes the path absolute.
func (c *Config) expandMusicPath() error {
	expanded, err := expandPath(c.Library.MusicPath, "")
	if err != nil {
		return err
	}
	c.Library.MusicPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue returns a comma-separated list from flag, env var, or default.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	parts := strings.Split(strValue, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(strings.ReplaceAll(envKey, "_", " ")), strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
