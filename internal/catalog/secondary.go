package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
)

// secondaryFormatID asks for 16-bit FLAC.
const secondaryFormatID = "6"

// SecondaryProvider adapts a store-style catalog whose responses vary in
// shape between endpoints. Payloads are read with gjson so absent or
// nested fields degrade to zero values.
type SecondaryProvider struct {
	base
	appID string
}

func NewSecondaryProvider(baseURL, appID, token string, client *httpclient.Client, log *logger.Logger) *SecondaryProvider {
	p := &SecondaryProvider{
		base:  newBase("catalog_secondary", baseURL, client, log),
		appID: appID,
	}
	if appID != "" {
		p.header.Set("X-App-Id", appID)
	}
	if token != "" {
		p.header.Set("X-User-Auth-Token", token)
	}
	return p
}

func (p *SecondaryProvider) Tag() domain.ProviderTag { return domain.ProviderSecondary }

func (p *SecondaryProvider) endpoint(path string, params url.Values) string {
	if p.appID != "" {
		params.Set("app_id", p.appID)
	}
	return p.baseURL + path + "?" + params.Encode()
}

func (p *SecondaryProvider) get(ctx context.Context, timeoutSearch bool, path string, params url.Values) (gjson.Result, error) {
	timeout := p.detailsTimeout
	if timeoutSearch {
		timeout = p.searchTimeout
	}
	data, err := p.getBytes(ctx, timeout, p.endpoint(path, params))
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: %s: malformed response from %s", domain.ErrProviderUnavailable, p.name, path)
	}
	return gjson.ParseBytes(data), nil
}

func (p *SecondaryProvider) Search(ctx context.Context, query string, kind domain.RecordKind, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 25
	}
	params := url.Values{"query": {query}, "limit": {fmt.Sprint(limit)}}

	var (
		path, list string
		convert    func(gjson.Result) domain.Record
	)
	switch kind {
	case domain.KindArtist:
		path, list, convert = "/artist/search", "artists.items", p.artistRecord
	case domain.KindAlbum:
		path, list, convert = "/album/search", "albums.items", p.albumRecord
	case domain.KindSong, "":
		path, list, convert = "/track/search", "tracks.items", p.trackRecord
	default:
		return nil, fmt.Errorf("%w: unknown search kind %q", domain.ErrInvalidRequest, kind)
	}

	res, err := p.get(ctx, true, path, params)
	if err != nil {
		return nil, err
	}
	records := lo.Map(res.Get(list).Array(), func(item gjson.Result, _ int) domain.Record {
		return convert(item)
	})
	records = completeRecords(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (p *SecondaryProvider) AlbumDetails(ctx context.Context, id string) (*domain.AlbumDetails, error) {
	res, err := p.get(ctx, false, "/album/get", url.Values{"album_id": {id}})
	if err != nil {
		return nil, err
	}
	if !res.Get("title").Exists() {
		return nil, notFound(p.name, "album "+id)
	}

	head := p.albumRecord(res)
	album := &domain.AlbumDetails{
		CollectionID: head.ExternalID.Value,
		Title:        head.DisplayName,
		Artist:       head.Artist,
		ArtworkURL:   head.ArtworkURL,
		Year:         head.Year,
		Tracks:       []domain.Record{},
	}
	for _, item := range res.Get("tracks.items").Array() {
		rec := p.trackRecord(item)
		if rec.Album == "" {
			rec.Album = album.Title
		}
		if rec.ArtworkURL == "" {
			rec.ArtworkURL = album.ArtworkURL
		}
		if rec.Year == 0 {
			rec.Year = album.Year
		}
		if rec.Artist == "" {
			rec.Artist = album.Artist
		}
		album.Tracks = append(album.Tracks, rec)
	}
	return album, nil
}

func (p *SecondaryProvider) ArtistDetails(ctx context.Context, id string) (*domain.ArtistDetails, error) {
	res, err := p.get(ctx, false, "/artist/get", url.Values{
		"artist_id": {id},
		"extra":     {"albums,tracks,similar_artists"},
	})
	if err != nil {
		return nil, err
	}
	if !res.Get("name").Exists() {
		return nil, notFound(p.name, "artist "+id)
	}

	details := &domain.ArtistDetails{
		Info:           p.artistRecord(res),
		Albums:         []domain.Record{},
		Singles:        []domain.Record{},
		TopTracks:      []domain.Record{},
		SimilarArtists: []domain.Record{},
	}
	for _, item := range res.Get("albums.items").Array() {
		rec := p.albumRecord(item)
		if rec.Artist == "" {
			rec.Artist = details.Info.Artist
		}
		switch strings.ToLower(item.Get("release_type").String()) {
		case "single", "epmini", "ep":
			details.Singles = append(details.Singles, rec)
		default:
			details.Albums = append(details.Albums, rec)
		}
	}
	for _, item := range res.Get("tracks.items").Array() {
		details.TopTracks = append(details.TopTracks, p.trackRecord(item))
	}
	for _, item := range res.Get("similar_artists.items").Array() {
		details.SimilarArtists = append(details.SimilarArtists, p.artistRecord(item))
	}
	return details, nil
}

func (p *SecondaryProvider) TrackDetails(ctx context.Context, id string) (*domain.TrackDetails, error) {
	res, err := p.get(ctx, false, "/track/get", url.Values{"track_id": {id}})
	if err != nil {
		return nil, err
	}
	if res.Get("title").String() == "" {
		return nil, notFound(p.name, "track "+id)
	}
	rec := p.trackRecord(res)
	return &domain.TrackDetails{
		ID:          rec.ExternalID,
		Title:       rec.DisplayName,
		Artist:      rec.Artist,
		Album:       rec.Album,
		ArtworkURL:  rec.ArtworkURL,
		Genre:       res.Get("album.genre.name").String(),
		TrackNumber: rec.TrackNumber,
		Year:        rec.Year,
	}, nil
}

func (p *SecondaryProvider) ResolveDownload(ctx context.Context, id string) (*domain.DownloadSource, error) {
	res, err := p.get(ctx, false, "/track/getFileUrl", url.Values{
		"track_id":  {id},
		"format_id": {secondaryFormatID},
		"intent":    {"stream"},
	})
	if err != nil {
		return nil, err
	}
	streamURL := res.Get("url").String()
	if streamURL == "" {
		// Previews and region-locked tracks come back without a url.
		return nil, fmt.Errorf("%w: %s: no file url for track %s", domain.ErrNotAcquirable, p.name, id)
	}
	mime := res.Get("mime_type").String()
	if mime == "" {
		mime = constants.MimeTypeFLAC
	}
	codec := "flac"
	if mime == constants.MimeTypeMP3 {
		codec = "mp3"
	}
	return &domain.DownloadSource{StreamURL: streamURL, MIME: mime, Codec: codec}, nil
}

func (p *SecondaryProvider) ArtworkURL(ctx context.Context, id string) (string, error) {
	details, err := p.TrackDetails(ctx, id)
	if err != nil {
		return "", err
	}
	if details.ArtworkURL == "" {
		return "", notFound(p.name, "no artwork for track "+id)
	}
	return details.ArtworkURL, nil
}

func (p *SecondaryProvider) trackRecord(item gjson.Result) domain.Record {
	artist := firstString(item, "performer.name", "artist.name", "album.artist.name")
	return domain.Record{
		Kind:        domain.KindSong,
		DisplayName: item.Get("title").String(),
		Artist:      artist,
		Album:       item.Get("album.title").String(),
		ArtworkURL:  firstString(item, "album.image.large", "album.image.small"),
		ExternalID:  domain.ExternalID{Provider: p.Tag(), Value: item.Get("id").String()},
		Year:        secondaryYear(item.Get("album")),
		TrackNumber: int(item.Get("track_number").Int()),
		Duration:    int(item.Get("duration").Int()),
		IsLossless:  item.Get("maximum_bit_depth").Int() >= 16,
	}
}

func (p *SecondaryProvider) albumRecord(item gjson.Result) domain.Record {
	return domain.Record{
		Kind:        domain.KindAlbum,
		DisplayName: item.Get("title").String(),
		Artist:      item.Get("artist.name").String(),
		Album:       item.Get("title").String(),
		ArtworkURL:  firstString(item, "image.large", "image.small"),
		ExternalID:  domain.ExternalID{Provider: p.Tag(), Value: item.Get("id").String()},
		Year:        secondaryYear(item),
		IsLossless:  item.Get("maximum_bit_depth").Int() >= 16,
	}
}

func (p *SecondaryProvider) artistRecord(item gjson.Result) domain.Record {
	name := item.Get("name").String()
	return domain.Record{
		Kind:        domain.KindArtist,
		DisplayName: name,
		Artist:      name,
		ArtworkURL:  firstString(item, "image.large", "image.small", "picture"),
		ExternalID:  domain.ExternalID{Provider: p.Tag(), Value: item.Get("id").String()},
	}
}

// secondaryYear reads the release year from a date string or a unix time.
func secondaryYear(album gjson.Result) int {
	if y := parseYear(album.Get("release_date_original").String()); y > 0 {
		return y
	}
	if ts := album.Get("released_at"); ts.Exists() && ts.Int() > 0 {
		return time.Unix(ts.Int(), 0).UTC().Year()
	}
	return 0
}

func firstString(item gjson.Result, paths ...string) string {
	for _, path := range paths {
		if s := item.Get(path).String(); s != "" {
			return s
		}
	}
	return ""
}

var _ CatalogProvider = (*SecondaryProvider)(nil)
