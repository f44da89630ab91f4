// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort            = "8080"
	DefaultDBPath          = "navistream.db"
	DefaultPrimaryQuality  = "LOSSLESS"
	DefaultPathTemplate    = "{{.Artist}}/{{.Album}}/{{.TrackPrefix}}{{.Title}}"
	DefaultFFmpegPath      = "ffmpeg"
	DefaultFFprobePath     = "ffprobe"
	DefaultWorkerPoolSize  = 4
	DefaultCacheTTL        = 12 * time.Hour
	DefaultArtworkCacheTTL = 7 * 24 * time.Hour
	DefaultStaleRetention  = 30 * 24 * time.Hour
	DefaultRetryCount      = 3
	DefaultRetryBase       = 1 * time.Second
	DefaultRequestsPerSec  = 5
)

// External call timeouts
const (
	SearchTimeout   = 10 * time.Second
	DetailsTimeout  = 15 * time.Second
	ArtworkTimeout  = 10 * time.Second
	MetadataTimeout = 4 * time.Second
	TransferTimeout = 10 * time.Minute
	ShutdownTimeout = 30 * time.Second
)

// Peer polling
const (
	DefaultPeerPollTimeout  = 60 * time.Second
	DefaultPeerPollInterval = 2 * time.Second
)

// Matching precision policy
const (
	DefaultTitleThreshold = 85
	DefaultAlbumThreshold = 70
)

// Streaming
const (
	StreamChunkSize  = 64 * 1024
	ProcessWaitDelay = 2 * time.Second
)

// Quality tier bitrates
const (
	BitrateLow    = "128k"
	BitrateMedium = "192k"
	BitrateHigh   = "320k"
)

// MIME Types
const (
	MimeTypeFLAC = "audio/flac"
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeMP4  = "audio/mp4"
	MimeTypeOGG  = "audio/ogg"
	MimeTypeWAV  = "audio/wav"
	MimeTypeJPEG = "image/jpeg"
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtMP4  = ".mp4"
	ExtM4A  = ".m4a"
	ExtOGG  = ".ogg"
	ExtWAV  = ".wav"
	ExtTmp  = ".tmp"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Path limits
const (
	MaxPathComponentLength = 120
)

// UserAgent is sent on every outbound provider request.
const UserAgent = "navistream/1.0 (+https://github.com/cesargomez89/navistream)"
