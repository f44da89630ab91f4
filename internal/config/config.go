package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cesargomez89/navistream/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DBPath       string
	LibraryRoot  string
	LogLevel     string
	LogFormat    string
	FFmpegPath   string
	FFprobePath  string
	PathTemplate string

	PrimaryCatalogURL     string
	PrimaryCatalogQuality string

	SecondaryCatalogURL   string
	SecondaryCatalogAppID string
	SecondaryCatalogToken string

	PeerURL          string
	PeerAPIKey       string
	PeerDownloadsDir string
	PeerPollTimeout  time.Duration
	PeerPollInterval time.Duration

	LyricsURL   string
	MetadataURL string

	SearchTimeout   time.Duration
	DetailsTimeout  time.Duration
	ArtworkTimeout  time.Duration
	MetadataTimeout time.Duration

	TitleThreshold int
	AlbumThreshold int

	WorkerPoolSize  int
	CacheTTL        time.Duration
	ArtworkCacheTTL time.Duration
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	defaultLibrary := filepath.Join(home, "Music/navistream")

	return &Config{
		Port:         getEnv("PORT", constants.DefaultPort),
		DBPath:       getEnv("DB_PATH", constants.DefaultDBPath),
		LibraryRoot:  getEnv("LIBRARY_ROOT", defaultLibrary),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		FFmpegPath:   getEnv("FFMPEG_PATH", constants.DefaultFFmpegPath),
		FFprobePath:  getEnv("FFPROBE_PATH", constants.DefaultFFprobePath),
		PathTemplate: getEnv("PATH_TEMPLATE", constants.DefaultPathTemplate),

		PrimaryCatalogURL:     getEnv("PRIMARY_CATALOG_URL", ""),
		PrimaryCatalogQuality: getEnv("PRIMARY_CATALOG_QUALITY", constants.DefaultPrimaryQuality),

		SecondaryCatalogURL:   getEnv("SECONDARY_CATALOG_URL", ""),
		SecondaryCatalogAppID: getEnv("SECONDARY_CATALOG_APP_ID", ""),
		SecondaryCatalogToken: getEnv("SECONDARY_CATALOG_TOKEN", ""),

		PeerURL:          getEnv("PEER_URL", ""),
		PeerAPIKey:       getEnv("PEER_API_KEY", ""),
		PeerDownloadsDir: getEnv("PEER_DOWNLOADS_DIR", ""),
		PeerPollTimeout:  getEnvDuration("PEER_POLL_TIMEOUT", constants.DefaultPeerPollTimeout),
		PeerPollInterval: getEnvDuration("PEER_POLL_INTERVAL", constants.DefaultPeerPollInterval),

		LyricsURL:   getEnv("LYRICS_URL", ""),
		MetadataURL: getEnv("METADATA_URL", ""),

		SearchTimeout:   getEnvDuration("SEARCH_TIMEOUT", constants.SearchTimeout),
		DetailsTimeout:  getEnvDuration("DETAILS_TIMEOUT", constants.DetailsTimeout),
		ArtworkTimeout:  getEnvDuration("ARTWORK_TIMEOUT", constants.ArtworkTimeout),
		MetadataTimeout: getEnvDuration("METADATA_TIMEOUT", constants.MetadataTimeout),

		TitleThreshold: getEnvInt("MATCH_TITLE_THRESHOLD", constants.DefaultTitleThreshold),
		AlbumThreshold: getEnvInt("MATCH_ALBUM_THRESHOLD", constants.DefaultAlbumThreshold),

		WorkerPoolSize:  getEnvInt("WORKER_POOL_SIZE", constants.DefaultWorkerPoolSize),
		CacheTTL:        getEnvDuration("CACHE_TTL", constants.DefaultCacheTTL),
		ArtworkCacheTTL: getEnvDuration("ARTWORK_CACHE_TTL", constants.DefaultArtworkCacheTTL),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.LibraryRoot == "" {
		errors = append(errors, "LIBRARY_ROOT cannot be empty")
	}

	if c.PathTemplate == "" {
		errors = append(errors, "PATH_TEMPLATE cannot be empty")
	}

	// Provider URLs are optional; an empty value disables the adapter.
	for key, value := range map[string]string{
		"PRIMARY_CATALOG_URL":   c.PrimaryCatalogURL,
		"SECONDARY_CATALOG_URL": c.SecondaryCatalogURL,
		"PEER_URL":              c.PeerURL,
		"LYRICS_URL":            c.LyricsURL,
		"METADATA_URL":          c.MetadataURL,
	} {
		if value == "" {
			continue
		}
		if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", key, value))
		}
	}

	if c.PeerURL != "" && c.PeerDownloadsDir == "" {
		errors = append(errors, "PEER_DOWNLOADS_DIR is required when PEER_URL is set")
	}

	if c.SecondaryCatalogURL != "" && c.SecondaryCatalogAppID == "" {
		errors = append(errors, "SECONDARY_CATALOG_APP_ID is required when SECONDARY_CATALOG_URL is set")
	}

	validQualities := map[string]bool{
		"LOSSLESS":        true,
		"HI_RES_LOSSLESS": true,
		"HIGH":            true,
		"LOW":             true,
	}
	if !validQualities[c.PrimaryCatalogQuality] {
		errors = append(errors, fmt.Sprintf("PRIMARY_CATALOG_QUALITY must be one of: LOSSLESS, HI_RES_LOSSLESS, HIGH, LOW, got: %s", c.PrimaryCatalogQuality))
	}

	if c.TitleThreshold < 0 || c.TitleThreshold > 100 {
		errors = append(errors, fmt.Sprintf("MATCH_TITLE_THRESHOLD must be between 0 and 100, got: %d", c.TitleThreshold))
	}
	if c.AlbumThreshold < 0 || c.AlbumThreshold > 100 {
		errors = append(errors, fmt.Sprintf("MATCH_ALBUM_THRESHOLD must be between 0 and 100, got: %d", c.AlbumThreshold))
	}

	if c.WorkerPoolSize < 1 {
		errors = append(errors, fmt.Sprintf("WORKER_POOL_SIZE must be at least 1, got: %d", c.WorkerPoolSize))
	}

	for key, value := range map[string]time.Duration{
		"SEARCH_TIMEOUT":     c.SearchTimeout,
		"DETAILS_TIMEOUT":    c.DetailsTimeout,
		"ARTWORK_TIMEOUT":    c.ArtworkTimeout,
		"METADATA_TIMEOUT":   c.MetadataTimeout,
		"PEER_POLL_TIMEOUT":  c.PeerPollTimeout,
		"PEER_POLL_INTERVAL": c.PeerPollInterval,
	} {
		if value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", key, value))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt parses an integer variable; unparsable values yield -1 so Validate reports them.
func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

// getEnvDuration accepts Go durations ("10s") or bare seconds ("10").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}
