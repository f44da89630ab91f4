package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/stream"
)

// artworkCache is a content-addressed image cache. Keys are
// "ext:<tag>:<id>" for catalog artwork and "sha:<content_hash>" for covers
// embedded in library files.
type artworkCache struct {
	cache   CacheStore
	images  *httpclient.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *logger.Logger
}

func newArtworkCache(cache CacheStore, images *httpclient.Client, ttl, timeout time.Duration, log *logger.Logger) *artworkCache {
	if images == nil {
		images = httpclient.NewClient(nil, httpclient.Options{})
	}
	if ttl <= 0 {
		ttl = constants.DefaultArtworkCacheTTL
	}
	if timeout <= 0 {
		timeout = constants.ArtworkTimeout
	}
	return &artworkCache{cache: cache, images: images, ttl: ttl, timeout: timeout, logger: log.WithComponent("artwork")}
}

func externalKey(id domain.ExternalID) string { return "ext:" + id.String() }
func contentKey(hash string) string          { return "sha:" + hash }

func (c *artworkCache) get(ctx context.Context, key string) []byte {
	if c.cache == nil || key == "" {
		return nil
	}
	data, err := c.cache.GetCache(ctx, key)
	if err != nil {
		c.logger.Warn("Artwork cache read failed", "key", key, "error", err)
		return nil
	}
	return data
}

func (c *artworkCache) put(ctx context.Context, data []byte, keys ...string) {
	if c.cache == nil || len(data) == 0 {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := c.cache.SetCache(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("Artwork cache write failed", "key", key, "error", err)
		}
	}
}

// download fetches url and returns it as JPEG.
func (c *artworkCache) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	data, err := c.images.Image(ctx, url)
	if err != nil {
		return nil, err
	}
	return toJPEG(data)
}

// toJPEG re-encodes PNG or GIF artwork. JPEG input is returned unchanged.
func toJPEG(data []byte) ([]byte, error) {
	if http.DetectContentType(data) == constants.MimeTypeJPEG {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported artwork format: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *artworkCache) purge(ctx context.Context) (int64, error) {
	if c.cache == nil {
		return 0, nil
	}
	return c.cache.PurgeExpiredCache(ctx)
}

// Artwork returns a JPEG for d. It tries the cache, the cover embedded in a
// matching library file, each catalog id, the caller's hint URL and finally
// a text lookup.
func (s *Service) Artwork(ctx context.Context, d domain.TrackDescriptor) (*stream.Stream, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var extKey string
	if len(d.IDs) > 0 {
		extKey = externalKey(d.IDs[0])
		if data := s.artwork.get(ctx, extKey); data != nil {
			return stream.FromBytes(constants.MimeTypeJPEG, data), nil
		}
	}

	row, err := s.matcher.Match(ctx, d)
	if err != nil {
		return nil, err
	}
	if row != nil {
		data, err := s.embeddedCover(ctx, row)
		if err == nil {
			s.artwork.put(ctx, data, extKey)
			return stream.FromBytes(constants.MimeTypeJPEG, data), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Failed to read embedded cover", "track_id", row.ID, "error", err)
		}
	}

	for _, url := range s.artworkURLs(ctx, d) {
		data, err := s.artwork.download(ctx, url)
		if err != nil {
			s.logger.Debug("Artwork download failed", "url", url, "error", err)
			continue
		}
		s.artwork.put(ctx, data, extKey)
		return stream.FromBytes(constants.MimeTypeJPEG, data), nil
	}
	return nil, fmt.Errorf("%w: no artwork for %q", domain.ErrNotFound, d.Title)
}

// ArtworkForFile streams the cover embedded in a library file.
func (s *Service) ArtworkForFile(ctx context.Context, filename string) (*stream.Stream, error) {
	abs, err := s.libraryPath(filename)
	if err != nil {
		return nil, err
	}
	return s.engine.Cover(ctx, abs)
}

// embeddedCover reads a row's cover, keyed in the cache by content hash.
func (s *Service) embeddedCover(ctx context.Context, row *domain.DownloadedTrack) ([]byte, error) {
	var shaKey string
	if row.ContentHash != "" {
		shaKey = contentKey(row.ContentHash)
		if data := s.artwork.get(ctx, shaKey); data != nil {
			return data, nil
		}
	}

	st, err := s.engine.Cover(ctx, s.index.AbsPath(row))
	if err != nil {
		return nil, err
	}
	defer st.Close()
	data, err := io.ReadAll(io.LimitReader(st, httpclient.MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty cover", domain.ErrNotFound)
	}
	s.artwork.put(ctx, data, shaKey)
	return data, nil
}

// artworkURLs lists remote candidates in preference order.
func (s *Service) artworkURLs(ctx context.Context, d domain.TrackDescriptor) []string {
	var urls []string
	for _, id := range d.IDs {
		cat, ok := s.providers.Catalog(id.Provider)
		if !ok {
			continue
		}
		u, err := cat.ArtworkURL(ctx, id.Value)
		if err != nil {
			s.logger.Debug("Catalog has no artwork", "external_id", id.String(), "error", err)
			continue
		}
		urls = append(urls, u)
	}
	if d.ArtworkHintURL != "" {
		urls = append(urls, d.ArtworkHintURL)
	}
	if mp := s.providers.Metadata(); mp != nil && d.HasText() {
		if u, err := mp.LookupArtwork(ctx, d.Artist, d.Title, d.Album); err == nil {
			urls = append(urls, u)
		}
	}
	return urls
}
