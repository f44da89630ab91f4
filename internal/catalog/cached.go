package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
)

// Cache is the key/value store backing CachedProvider. store.DB satisfies it.
type Cache interface {
	GetCache(ctx context.Context, key string) ([]byte, error)
	SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error
	ClearCache(ctx context.Context) error
}

// CachedProvider memoizes catalog lookups. Download resolution is never
// cached because stream URLs expire.
type CachedProvider struct {
	provider CatalogProvider
	cache    Cache
	logger   *logger.Logger
	cacheTTL time.Duration
}

func NewCachedProvider(provider CatalogProvider, cache Cache, cacheTTL time.Duration, log *logger.Logger) *CachedProvider {
	if log == nil {
		log = logger.Default()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithComponent("catalog_cache"),
	}
}

// cached loads key into out, or calls fetch and stores its result. Cache
// failures only cost a provider call.
func cached[T any](ctx context.Context, c *CachedProvider, key string, fetch func() (T, error)) (T, error) {
	key = string(c.provider.Tag()) + ":" + key

	data, err := c.cache.GetCache(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", "key", key, "error", err)
	}
	if data != nil {
		var out T
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}

	result, err := fetch()
	if err != nil {
		return result, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := c.cache.SetCache(ctx, key, data, c.cacheTTL); err != nil {
			c.logger.Warn("Cache write failed", "key", key, "error", err)
		}
	}
	return result, nil
}

func (c *CachedProvider) Tag() domain.ProviderTag { return c.provider.Tag() }

func (c *CachedProvider) Search(ctx context.Context, query string, kind domain.RecordKind, limit int) ([]domain.Record, error) {
	key := fmt.Sprintf("search:%s:%d:%s", kind, limit, query)
	return cached(ctx, c, key, func() ([]domain.Record, error) {
		return c.provider.Search(ctx, query, kind, limit)
	})
}

func (c *CachedProvider) AlbumDetails(ctx context.Context, id string) (*domain.AlbumDetails, error) {
	return cached(ctx, c, "album:"+id, func() (*domain.AlbumDetails, error) {
		return c.provider.AlbumDetails(ctx, id)
	})
}

func (c *CachedProvider) ArtistDetails(ctx context.Context, id string) (*domain.ArtistDetails, error) {
	return cached(ctx, c, "artist:"+id, func() (*domain.ArtistDetails, error) {
		return c.provider.ArtistDetails(ctx, id)
	})
}

func (c *CachedProvider) TrackDetails(ctx context.Context, id string) (*domain.TrackDetails, error) {
	return cached(ctx, c, "track:"+id, func() (*domain.TrackDetails, error) {
		return c.provider.TrackDetails(ctx, id)
	})
}

func (c *CachedProvider) ArtworkURL(ctx context.Context, id string) (string, error) {
	return cached(ctx, c, "artwork:"+id, func() (string, error) {
		return c.provider.ArtworkURL(ctx, id)
	})
}

func (c *CachedProvider) ResolveDownload(ctx context.Context, id string) (*domain.DownloadSource, error) {
	return c.provider.ResolveDownload(ctx, id)
}

func (c *CachedProvider) ClearCache(ctx context.Context) error {
	return c.cache.ClearCache(ctx)
}

var _ CatalogProvider = (*CachedProvider)(nil)
