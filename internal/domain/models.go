package domain

import (
	"fmt"
	"strings"
	"time"
)

// TrackDescriptor is a playback or acquisition request. It is not stored.
type TrackDescriptor struct {
	Artist         string       `json:"artist"`
	Title          string       `json:"title"`
	Album          string       `json:"album,omitempty"`
	IDs            []ExternalID `json:"external_ids,omitempty"`
	ArtworkHintURL string       `json:"artwork_hint_url,omitempty"`
}

// Validate rejects descriptors that carry neither an id nor artist and title.
func (d TrackDescriptor) Validate() error {
	for _, id := range d.IDs {
		if !id.Provider.Valid() || id.Value == "" {
			return fmt.Errorf("%w: malformed external id %q", ErrInvalidRequest, id.String())
		}
	}
	if len(d.IDs) == 0 && !d.HasText() {
		return fmt.Errorf("%w: descriptor needs an external id or artist and title", ErrInvalidRequest)
	}
	return nil
}

// HasText reports whether both artist and title are set.
func (d TrackDescriptor) HasText() bool {
	return strings.TrimSpace(d.Artist) != "" && strings.TrimSpace(d.Title) != ""
}

// ID returns the descriptor's id for tag.
func (d TrackDescriptor) ID(tag ProviderTag) (string, bool) {
	for _, id := range d.IDs {
		if id.Provider == tag {
			return id.Value, true
		}
	}
	return "", false
}

// DownloadedTrack is one indexed local file.
type DownloadedTrack struct {
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
	StaleAt     *time.Time  `json:"stale_at,omitempty" db:"stale_at"`
	ExternalIDs ExternalIDs `json:"external_ids" db:"-"`
	Title       string      `json:"title" db:"title"`
	Artist      string      `json:"artist" db:"artist"`
	Album       string      `json:"album,omitempty" db:"album"`
	TitleNorm   string      `json:"-" db:"title_norm"`
	ArtistNorm  string      `json:"-" db:"artist_norm"`
	AlbumNorm   string      `json:"-" db:"album_norm"`
	LocalPath   string      `json:"local_path" db:"local_path"`
	SourceTag   ProviderTag `json:"source_tag" db:"source_tag"`
	ContentHash string      `json:"content_hash,omitempty" db:"content_hash"`
	ID          int64       `json:"id" db:"id"`
	Stale       bool        `json:"stale" db:"stale"`
}

// Registration is the input to Index.Register.
type Registration struct {
	ExternalIDs ExternalIDs
	Title       string
	Artist      string
	Album       string
	LocalPath   string
	SourceTag   ProviderTag
	ContentHash string
}

// JobState is the lifecycle state of an in-flight acquisition.
type JobState string

const (
	JobResolving  JobState = "resolving"
	JobStreaming  JobState = "streaming"
	JobTagging    JobState = "tagging"
	JobPublishing JobState = "publishing"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
)

// Terminal reports whether s is done or failed.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Record is the provider-neutral search result shape.
type Record struct {
	Kind        RecordKind `json:"type"`
	DisplayName string     `json:"display_name"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album,omitempty"`
	ArtworkURL  string     `json:"artwork_url,omitempty"`
	ExternalID  ExternalID `json:"external_id"`
	Year        int        `json:"year,omitempty"`
	TrackNumber int        `json:"track_number,omitempty"`
	Duration    int        `json:"duration,omitempty"`
	IsLossless  bool       `json:"is_lossless,omitempty"`
}

// AlbumDetails is the album_details capability result.
type AlbumDetails struct {
	CollectionID string   `json:"collection_id"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	ArtworkURL   string   `json:"artwork_url,omitempty"`
	Tracks       []Record `json:"tracks"`
	Year         int      `json:"year,omitempty"`
}

// ArtistDetails is the artist_details capability result.
type ArtistDetails struct {
	Info           Record   `json:"info"`
	Albums         []Record `json:"albums"`
	Singles        []Record `json:"singles"`
	TopTracks      []Record `json:"top_tracks"`
	SimilarArtists []Record `json:"similar_artists"`
}

// TrackDetails carries what the pipeline needs to lay out and tag a file.
type TrackDetails struct {
	ID          ExternalID `json:"external_id"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album,omitempty"`
	ArtworkURL  string     `json:"artwork_url,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	TrackNumber int        `json:"track_number,omitempty"`
	Year        int        `json:"year,omitempty"`
}

// DownloadSource is the resolve_download result.
type DownloadSource struct {
	StreamURL string `json:"stream_url"`
	MIME      string `json:"mime"`
	Codec     string `json:"codec"`
}

// PeerCandidate is one file offered by a peer in response to a search.
type PeerCandidate struct {
	Username    string `json:"username"`
	Filename    string `json:"filename"`
	Extension   string `json:"extension"`
	Size        int64  `json:"size"`
	BitRate     int    `json:"bit_rate"`
	QueueLength int    `json:"queue_length"`
}

// AudioMetadata is the combined technical and artistic view of a file.
type AudioMetadata struct {
	Path        string  `json:"path"`
	Format      string  `json:"format"`
	Codec       string  `json:"codec"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	Genre       string  `json:"genre,omitempty"`
	Date        string  `json:"date,omitempty"`
	Duration    float64 `json:"duration"`
	BitRate     int     `json:"bit_rate"`
	SampleRate  int     `json:"sample_rate"`
	Channels    int     `json:"channels"`
	TrackNumber int     `json:"track_number,omitempty"`
	HasCover    bool    `json:"has_cover"`
}

// SweepReport summarizes an admin sweep.
type SweepReport struct {
	Checked       int `json:"checked"`
	MarkedStale   int `json:"marked_stale"`
	Deleted       int `json:"deleted"`
	HashesUpdated int `json:"hashes_updated"`
}
