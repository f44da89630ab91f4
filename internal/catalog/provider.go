// Package catalog adapts external music services to a uniform set of
// capabilities. Failures leave this package as provider_unavailable or
// not_found; provider-shaped JSON never does.
package catalog

import (
	"context"
	"io"

	"github.com/cesargomez89/navistream/internal/domain"
)

// CatalogProvider is a searchable catalog that may serve direct downloads.
type CatalogProvider interface {
	Tag() domain.ProviderTag
	Search(ctx context.Context, query string, kind domain.RecordKind, limit int) ([]domain.Record, error)
	AlbumDetails(ctx context.Context, collectionID string) (*domain.AlbumDetails, error)
	ArtistDetails(ctx context.Context, artistID string) (*domain.ArtistDetails, error)
	TrackDetails(ctx context.Context, id string) (*domain.TrackDetails, error)
	ResolveDownload(ctx context.Context, id string) (*domain.DownloadSource, error)
	ArtworkURL(ctx context.Context, id string) (string, error)
}

// PeerTransferProvider searches a file-sharing network and transfers files.
type PeerTransferProvider interface {
	// StartSearch enqueues a search and returns its id.
	StartSearch(ctx context.Context, query string) (string, error)
	// SearchResults returns the candidates seen so far and whether the
	// search has finished.
	SearchResults(ctx context.Context, searchID string) ([]domain.PeerCandidate, bool, error)
	// Transfer requests the file, waits for it to complete and opens it.
	Transfer(ctx context.Context, c domain.PeerCandidate) (io.ReadCloser, error)
}

// LyricsProvider returns plain lyrics and a best-effort cover URL.
type LyricsProvider interface {
	Lyrics(ctx context.Context, artist, title, album string, durationSec int) (string, error)
	// OnlineCover derives a cover URL from the tags of the file at path.
	OnlineCover(ctx context.Context, path string) (string, error)
}

// MetadataProvider is an artwork and genre lookup service.
type MetadataProvider interface {
	LookupArtwork(ctx context.Context, artist, title, album string) (string, error)
	LookupGenre(ctx context.Context, artist, title string) (string, error)
}
