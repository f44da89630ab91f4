package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
)

const (
	manifestBTS  = "application/vnd.tidal.bts"
	manifestDASH = "application/dash+xml"
)

var (
	dashBaseURLRe = regexp.MustCompile(`(?is)<BaseURL[^>]*>(.*?)</BaseURL>`)
	dashCodecsRe  = regexp.MustCompile(`codecs="([^"]+)"`)
	dashMimeRe    = regexp.MustCompile(`mimeType="([^"]+)"`)
)

// HifiProvider speaks the hifi-style catalog API. It serves as
// catalog_primary.
type HifiProvider struct {
	base
	quality string
}

func NewHifiProvider(baseURL, quality string, client *httpclient.Client, log *logger.Logger) *HifiProvider {
	if quality == "" {
		quality = constants.DefaultPrimaryQuality
	}
	return &HifiProvider{
		base:    newBase("catalog_primary", baseURL, client, log),
		quality: quality,
	}
}

func (p *HifiProvider) Tag() domain.ProviderTag { return domain.ProviderPrimary }

// ensureAbsoluteURL maps an image id to its resources URL. Clients never
// see bare image ids.
func (p *HifiProvider) ensureAbsoluteURL(urlOrID string, size ...string) string {
	if urlOrID == "" {
		return ""
	}
	if strings.HasPrefix(urlOrID, "http://") || strings.HasPrefix(urlOrID, "https://") {
		return urlOrID
	}
	imgSize := "640x640"
	if len(size) > 0 {
		imgSize = size[0]
	}
	path := strings.ReplaceAll(urlOrID, "-", "/")
	return fmt.Sprintf("https://resources.tidal.com/images/%s/%s.jpg", path, imgSize)
}

func (p *HifiProvider) AlbumDetails(ctx context.Context, id string) (*domain.AlbumDetails, error) {
	u := fmt.Sprintf("%s/album/?id=%s", p.baseURL, url.QueryEscape(id))
	var resp APIAlbumResponse
	if err := p.getJSON(ctx, p.detailsTimeout, u, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" && resp.Data.Title == "" {
		return nil, notFound(p.name, "album "+id)
	}
	return resp.ToDetails(p), nil
}

func (p *HifiProvider) ArtistDetails(ctx context.Context, id string) (*domain.ArtistDetails, error) {
	u := fmt.Sprintf("%s/artist/?id=%s", p.baseURL, url.QueryEscape(id))
	var resp APIArtistResponse
	if err := p.getJSON(ctx, p.detailsTimeout, u, &resp); err != nil {
		return nil, err
	}
	if resp.Artist.Name == "" {
		return nil, notFound(p.name, "artist "+id)
	}
	info := resp.Artist.ToRecord(p)

	aggURL := fmt.Sprintf("%s/artist/?f=%s&skip_tracks=false", p.baseURL, url.QueryEscape(id))
	var agg APIArtistAggregationResponse
	if err := p.getJSON(ctx, p.detailsTimeout, aggURL, &agg); err != nil {
		// The aggregation is best effort; the artist itself resolved.
		p.logger.Warn("Artist aggregation failed", "artist_id", id, "error", err)
	}
	return agg.ToDetails(info, p), nil
}

func (p *HifiProvider) TrackDetails(ctx context.Context, id string) (*domain.TrackDetails, error) {
	u := fmt.Sprintf("%s/info/?id=%s", p.baseURL, url.QueryEscape(id))
	var resp APITrackInfoResponse
	if err := p.getJSON(ctx, p.detailsTimeout, u, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Title == "" {
		return nil, notFound(p.name, "track "+id)
	}
	return resp.Data.ToDetails(p), nil
}

// ResolveDownload decodes the stream manifest into a single fetchable URL.
// Segmented DASH manifests have no single URL and are not acquirable.
func (p *HifiProvider) ResolveDownload(ctx context.Context, id string) (*domain.DownloadSource, error) {
	u := fmt.Sprintf("%s/track/?id=%s&quality=%s", p.baseURL, url.QueryEscape(id), url.QueryEscape(p.quality))
	var resp APIStreamResponse
	if err := p.getJSON(ctx, p.detailsTimeout, u, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Manifest == "" {
		return nil, fmt.Errorf("%w: %s: no manifest for track %s", domain.ErrNotAcquirable, p.name, id)
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.Data.Manifest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: bad manifest encoding: %v", domain.ErrNotAcquirable, p.name, err)
	}

	switch resp.Data.ManifestMimeType {
	case manifestBTS:
		var manifest APIBTSManifest
		if err := json.Unmarshal(decoded, &manifest); err != nil {
			return nil, fmt.Errorf("%w: %s: bad manifest: %v", domain.ErrNotAcquirable, p.name, err)
		}
		if len(manifest.URLs) == 0 {
			return nil, fmt.Errorf("%w: %s: no urls in manifest", domain.ErrNotAcquirable, p.name)
		}
		mime := manifest.MimeType
		if mime == "" {
			mime = constants.MimeTypeFLAC
		}
		return &domain.DownloadSource{StreamURL: manifest.URLs[0], MIME: mime, Codec: manifest.Codecs}, nil

	case manifestDASH:
		s := string(decoded)
		if strings.Contains(s, "<SegmentTemplate") {
			return nil, fmt.Errorf("%w: %s: segmented stream for track %s", domain.ErrNotAcquirable, p.name, id)
		}
		match := dashBaseURLRe.FindStringSubmatch(s)
		if len(match) < 2 || strings.TrimSpace(match[1]) == "" {
			return nil, fmt.Errorf("%w: %s: no BaseURL found in DASH manifest", domain.ErrNotAcquirable, p.name)
		}
		src := &domain.DownloadSource{
			StreamURL: strings.ReplaceAll(strings.TrimSpace(match[1]), "&amp;", "&"),
			MIME:      constants.MimeTypeFLAC,
		}
		if m := dashMimeRe.FindStringSubmatch(s); len(m) > 1 {
			src.MIME = m[1]
		}
		if m := dashCodecsRe.FindStringSubmatch(s); len(m) > 1 {
			src.Codec = m[1]
		}
		return src, nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported manifest type %q", domain.ErrNotAcquirable, p.name, resp.Data.ManifestMimeType)
}

func (p *HifiProvider) ArtworkURL(ctx context.Context, id string) (string, error) {
	details, err := p.TrackDetails(ctx, id)
	if err != nil {
		return "", err
	}
	if details.ArtworkURL == "" {
		return "", notFound(p.name, "no artwork for track "+id)
	}
	return details.ArtworkURL, nil
}

var _ CatalogProvider = (*HifiProvider)(nil)
