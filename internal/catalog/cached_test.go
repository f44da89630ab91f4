package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/navistream/internal/config"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/store"
)

type memCache struct {
	data map[string][]byte
	err  error
}

func (m *memCache) GetCache(_ context.Context, key string) ([]byte, error) {
	return m.data[key], m.err
}

func (m *memCache) SetCache(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.data[key] = data
	return m.err
}

func (m *memCache) ClearCache(context.Context) error {
	m.data = make(map[string][]byte)
	return m.err
}

func mockWithSong() *MockProvider {
	m := NewMockProvider(domain.ProviderPrimary)
	m.Records = []domain.Record{{
		Kind:        domain.KindSong,
		DisplayName: "One More Time",
		Artist:      "Daft Punk",
		Album:       "Discovery",
		ExternalID:  domain.ExternalID{Provider: domain.ProviderPrimary, Value: "12345"},
	}}
	m.Tracks["12345"] = &domain.TrackDetails{Title: "One More Time", Artist: "Daft Punk", ArtworkURL: "https://img/1.jpg"}
	m.Sources["12345"] = &domain.DownloadSource{StreamURL: "https://cdn/1.flac"}
	return m
}

func TestCachedProvider_Search(t *testing.T) {
	inner := mockWithSong()
	cache := &memCache{data: make(map[string][]byte)}
	cp := NewCachedProvider(inner, cache, time.Hour, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := cp.Search(ctx, "one more time", domain.KindSong, 5)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(res) != 1 || res[0].DisplayName != "One More Time" {
			t.Fatalf("result = %+v", res)
		}
	}
	if n := inner.SearchCalls.Load(); n != 1 {
		t.Errorf("inner Search called %d times, want 1", n)
	}
	if _, ok := cache.data["catalog_primary:search:song:5:one more time"]; !ok {
		t.Errorf("cache keys = %v", cache.data)
	}

	// A different kind is a different key.
	if _, err := cp.Search(ctx, "one more time", domain.KindAlbum, 5); err != nil {
		t.Fatal(err)
	}
	if n := inner.SearchCalls.Load(); n != 2 {
		t.Errorf("inner Search called %d times, want 2", n)
	}

	if err := cp.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cp.Search(ctx, "one more time", domain.KindSong, 5); err != nil {
		t.Fatal(err)
	}
	if n := inner.SearchCalls.Load(); n != 3 {
		t.Errorf("after clear, inner Search called %d times, want 3", n)
	}
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	inner := mockWithSong()
	inner.Err = errors.Join(domain.ErrProviderUnavailable, errors.New("down"))
	cache := &memCache{data: make(map[string][]byte)}
	cp := NewCachedProvider(inner, cache, time.Hour, nil)

	if _, err := cp.TrackDetails(context.Background(), "12345"); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("error = %v", err)
	}
	if len(cache.data) != 0 {
		t.Errorf("failure was cached: %v", cache.data)
	}
}

func TestCachedProvider_CacheFailureFallsThrough(t *testing.T) {
	inner := mockWithSong()
	cache := &memCache{data: make(map[string][]byte), err: errors.New("disk full")}
	cp := NewCachedProvider(inner, cache, time.Hour, nil)

	art, err := cp.ArtworkURL(context.Background(), "12345")
	if err != nil {
		t.Fatalf("ArtworkURL: %v", err)
	}
	if art != "https://img/1.jpg" {
		t.Errorf("artwork = %q", art)
	}
}

func TestCachedProvider_ResolveNotCached(t *testing.T) {
	inner := mockWithSong()
	cache := &memCache{data: make(map[string][]byte)}
	cp := NewCachedProvider(inner, cache, time.Hour, nil)

	for i := 0; i < 2; i++ {
		if _, err := cp.ResolveDownload(context.Background(), "12345"); err != nil {
			t.Fatal(err)
		}
	}
	if n := inner.ResolveCalls.Load(); n != 2 {
		t.Errorf("ResolveDownload reached provider %d times, want 2", n)
	}
}

func TestCachedProvider_StoreBacked(t *testing.T) {
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	inner := mockWithSong()
	cp := NewCachedProvider(inner, db, time.Hour, nil)
	ctx := context.Background()

	first, err := cp.TrackDetails(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	inner.Tracks["12345"] = &domain.TrackDetails{Title: "changed"}
	second, err := cp.TrackDetails(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if second.Title != first.Title {
		t.Errorf("cached title = %q, want %q", second.Title, first.Title)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{
		PrimaryCatalogURL:     "http://primary.example",
		PrimaryCatalogQuality: "LOSSLESS",
		PeerURL:               "http://peer.example",
		PeerDownloadsDir:      t.TempDir(),
		LyricsURL:             "http://lyrics.example",
		CacheTTL:              time.Hour,
	}
	r := NewRegistryFromConfig(cfg, &memCache{data: map[string][]byte{}}, nil)

	status := r.Status()
	if len(status.Catalogs) != 1 || status.Catalogs[0] != domain.ProviderPrimary {
		t.Errorf("catalogs = %v", status.Catalogs)
	}
	if !status.Peer || !status.Lyrics || status.Metadata {
		t.Errorf("status = %+v", status)
	}
	p, ok := r.Catalog(domain.ProviderPrimary)
	if !ok {
		t.Fatal("primary catalog missing")
	}
	if _, cached := p.(*CachedProvider); !cached {
		t.Errorf("primary is %T, want *CachedProvider", p)
	}
	if _, ok := r.Catalog(domain.ProviderSecondary); ok {
		t.Error("secondary registered without a URL")
	}
}

func TestRegistry_CatalogOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.SetCatalog(NewMockProvider(domain.ProviderSecondary))
	r.SetCatalog(NewMockProvider(domain.ProviderPrimary))

	got := r.Catalogs()
	if len(got) != 2 || got[0].Tag() != domain.ProviderPrimary || got[1].Tag() != domain.ProviderSecondary {
		t.Errorf("order = %v, %v", got[0].Tag(), got[1].Tag())
	}
	if r.Peer() != nil || r.Lyrics() != nil || r.Metadata() != nil {
		t.Error("unset adapters should be nil")
	}
}
