package catalog

import (
	"strings"

	"github.com/cesargomez89/navistream/internal/domain"
)

func isLosslessQuality(q string) bool {
	q = strings.ToUpper(q)
	return q == "LOSSLESS" || q == "HI_RES" || q == "HI_RES_LOSSLESS"
}

func (r APIArtistWithPicture) ToRecord(p *HifiProvider) domain.Record {
	return domain.Record{
		Kind:        domain.KindArtist,
		DisplayName: r.Name,
		Artist:      r.Name,
		ArtworkURL:  p.ensureAbsoluteURL(r.Picture, "320x320"),
		ExternalID:  domain.ExternalID{Provider: p.Tag(), Value: formatID(r.ID)},
	}
}

func (a APIAlbumItem) ToRecord(p *HifiProvider) domain.Record {
	artist := a.PrimaryArtist().Name
	if artist == "" {
		artist = "Unknown"
	}
	return domain.Record{
		Kind:        domain.KindAlbum,
		DisplayName: a.Title,
		Artist:      artist,
		Album:       a.Title,
		ArtworkURL:  p.ensureAbsoluteURL(a.Cover.First(), "640x640"),
		ExternalID:  domain.ExternalID{Provider: p.Tag(), Value: formatID(a.ID)},
		Year:        parseYear(a.ReleaseDate),
		IsLossless:  isLosslessQuality(a.AudioQuality),
	}
}

func (t APITrackItem) ToRecord(p *HifiProvider) domain.Record {
	artist := t.PrimaryArtist().Name
	if artist == "" {
		artist = "Unknown"
	}
	return domain.Record{
		Kind:        domain.KindSong,
		DisplayName: t.Title,
		Artist:      artist,
		Album:       t.Album.Title,
		ArtworkURL:  p.ensureAbsoluteURL(t.Album.Cover.First(), "640x640"),
		ExternalID:  domain.ExternalID{Provider: p.Tag(), Value: formatID(t.ID)},
		Year:        parseYear(t.Album.ReleaseDate),
		TrackNumber: t.TrackNumber,
		Duration:    t.Duration,
		IsLossless:  isLosslessQuality(t.AudioQuality),
	}
}

func (t APITrackItem) ToDetails(p *HifiProvider) *domain.TrackDetails {
	return &domain.TrackDetails{
		ID:          domain.ExternalID{Provider: p.Tag(), Value: formatID(t.ID)},
		Title:       t.Title,
		Artist:      t.PrimaryArtist().Name,
		Album:       t.Album.Title,
		ArtworkURL:  p.ensureAbsoluteURL(t.Album.Cover.First(), "1280x1280"),
		Genre:       t.Album.Genre,
		TrackNumber: t.TrackNumber,
		Year:        parseYear(t.Album.ReleaseDate),
	}
}

func (r APIAlbumResponse) ToDetails(p *HifiProvider) *domain.AlbumDetails {
	data := r.Data
	album := &domain.AlbumDetails{
		CollectionID: formatID(data.ID),
		Title:        data.Title,
		Artist:       data.PrimaryArtist().Name,
		ArtworkURL:   p.ensureAbsoluteURL(data.Cover.First(), "640x640"),
		Year:         parseYear(data.ReleaseDate),
		Tracks:       make([]domain.Record, 0, len(data.Items)),
	}

	for _, wrapped := range data.Items {
		item := wrapped.Item
		rec := item.ToRecord(p)
		if rec.Album == "" {
			rec.Album = album.Title
		}
		if rec.ArtworkURL == "" {
			rec.ArtworkURL = album.ArtworkURL
		}
		if rec.Year == 0 {
			rec.Year = album.Year
		}
		if rec.Artist == "Unknown" && album.Artist != "" {
			rec.Artist = album.Artist
		}
		album.Tracks = append(album.Tracks, rec)
	}
	return album
}

// ToDetails splits the aggregation into albums and singles. EPs count as
// singles.
func (r APIArtistAggregationResponse) ToDetails(info domain.Record, p *HifiProvider) *domain.ArtistDetails {
	details := &domain.ArtistDetails{
		Info:           info,
		Albums:         []domain.Record{},
		Singles:        []domain.Record{},
		TopTracks:      []domain.Record{},
		SimilarArtists: []domain.Record{},
	}
	for _, item := range r.Albums.Items {
		rec := item.ToRecord(p)
		if rec.Artist == "Unknown" {
			rec.Artist = info.Artist
		}
		switch strings.ToUpper(item.Type) {
		case "SINGLE", "EP":
			details.Singles = append(details.Singles, rec)
		default:
			details.Albums = append(details.Albums, rec)
		}
	}
	for _, item := range r.Tracks {
		details.TopTracks = append(details.TopTracks, item.ToRecord(p))
	}
	for _, a := range r.Similar {
		details.SimilarArtists = append(details.SimilarArtists, a.ToRecord(p))
	}
	return details
}
