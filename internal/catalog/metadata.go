package catalog

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
)

// MetadataLookup queries an iTunes-style search API for artwork and genre.
type MetadataLookup struct {
	base
}

func NewMetadataLookup(baseURL string, client *httpclient.Client, log *logger.Logger) *MetadataLookup {
	m := &MetadataLookup{base: newBase("metadata", baseURL, client, log)}
	m.searchTimeout = constants.MetadataTimeout
	return m
}

// SetTimeout overrides the lookup deadline.
func (m *MetadataLookup) SetTimeout(d time.Duration) {
	m.SetTimeouts(d, 0)
}

// find returns the first song result whose artist matches.
func (m *MetadataLookup) find(ctx context.Context, artist, title, album string) (gjson.Result, error) {
	term := strings.TrimSpace(artist + " " + title)
	params := url.Values{"term": {term}, "entity": {"song"}, "limit": {"5"}}
	data, err := m.getBytes(ctx, m.searchTimeout, m.baseURL+"/search?"+params.Encode())
	if err != nil {
		return gjson.Result{}, err
	}

	results := gjson.GetBytes(data, "results").Array()
	wantArtist := library.Normalize(artist)
	wantAlbum := library.Normalize(album)

	var fallback gjson.Result
	for _, r := range results {
		if !strings.Contains(library.Normalize(r.Get("artistName").String()), wantArtist) {
			continue
		}
		if wantAlbum == "" || library.Normalize(r.Get("collectionName").String()) == wantAlbum {
			return r, nil
		}
		if !fallback.Exists() {
			fallback = r
		}
	}
	if fallback.Exists() {
		return fallback, nil
	}
	return gjson.Result{}, notFound(m.name, term)
}

// LookupArtwork returns a 600px artwork URL.
func (m *MetadataLookup) LookupArtwork(ctx context.Context, artist, title, album string) (string, error) {
	r, err := m.find(ctx, artist, title, album)
	if err != nil {
		return "", err
	}
	art := r.Get("artworkUrl100").String()
	if art == "" {
		return "", notFound(m.name, "no artwork")
	}
	return strings.Replace(art, "100x100bb", "600x600bb", 1), nil
}

func (m *MetadataLookup) LookupGenre(ctx context.Context, artist, title string) (string, error) {
	r, err := m.find(ctx, artist, title, "")
	if err != nil {
		return "", err
	}
	genre := canonicalGenre(r.Get("primaryGenreName").String())
	if genre == "" {
		return "", notFound(m.name, "no genre")
	}
	return genre, nil
}

var _ MetadataProvider = (*MetadataLookup)(nil)
