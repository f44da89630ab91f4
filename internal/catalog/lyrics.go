package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/mediainfo"
)

// LyricsLookup fetches plain lyrics from an lrclib-style service. Cover
// lookups are delegated to the metadata provider, fed with the tags of the
// file on disk.
type LyricsLookup struct {
	base
	artwork MetadataProvider
}

func NewLyricsLookup(baseURL string, artwork MetadataProvider, client *httpclient.Client, log *logger.Logger) *LyricsLookup {
	l := &LyricsLookup{
		base:    newBase("lyrics", baseURL, client, log),
		artwork: artwork,
	}
	l.detailsTimeout = constants.MetadataTimeout
	return l
}

func (l *LyricsLookup) Lyrics(ctx context.Context, artist, title, album string, durationSec int) (string, error) {
	params := url.Values{
		"artist_name": {artist},
		"track_name":  {title},
	}
	if album != "" {
		params.Set("album_name", album)
	}
	if durationSec > 0 {
		params.Set("duration", strconv.Itoa(durationSec))
	}

	data, err := l.getBytes(ctx, l.detailsTimeout, l.baseURL+"/api/get?"+params.Encode())
	if err != nil {
		return "", err
	}
	res := gjson.ParseBytes(data)
	if res.Get("instrumental").Bool() {
		return "", notFound(l.name, "instrumental")
	}
	text := strings.TrimSpace(res.Get("plainLyrics").String())
	if text == "" {
		return "", notFound(l.name, fmt.Sprintf("no lyrics for %s - %s", artist, title))
	}
	return text, nil
}

// OnlineCover returns a best-effort cover URL for the file at path.
func (l *LyricsLookup) OnlineCover(ctx context.Context, path string) (string, error) {
	if l.artwork == nil {
		return "", notFound(l.name, "no artwork lookup configured")
	}
	tags, err := mediainfo.ReadTags(path)
	if err != nil {
		return "", err
	}
	if tags.Artist == "" || tags.Title == "" {
		return "", fmt.Errorf("%w: %s: file has no artist or title tags", domain.ErrNotFound, l.name)
	}
	return l.artwork.LookupArtwork(ctx, tags.Artist, tags.Title, tags.Album)
}

var _ LyricsProvider = (*LyricsLookup)(nil)
