package catalog

import (
	"sync"

	"github.com/cesargomez89/navistream/internal/config"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
)

// Registry holds the configured adapters. Any subset may be absent; callers
// skip what is missing.
type Registry struct {
	catalogs map[domain.ProviderTag]CatalogProvider
	peer     PeerTransferProvider
	lyrics   LyricsProvider
	metadata MetadataProvider
	logger   *logger.Logger
	mu       sync.RWMutex
}

func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Default()
	}
	return &Registry{
		catalogs: make(map[domain.ProviderTag]CatalogProvider),
		logger:   log.WithComponent("providers"),
	}
}

// NewRegistryFromConfig builds every adapter whose URL is configured.
// Catalog lookups are cached when cache is non-nil.
func NewRegistryFromConfig(cfg *config.Config, cache Cache, log *logger.Logger) *Registry {
	r := NewRegistry(log)
	client := func() *httpclient.Client {
		return httpclient.NewClient(nil, httpclient.Options{})
	}
	wrap := func(p CatalogProvider) CatalogProvider {
		if cache == nil {
			return p
		}
		return NewCachedProvider(p, cache, cfg.CacheTTL, log)
	}

	if cfg.PrimaryCatalogURL != "" {
		p := NewHifiProvider(cfg.PrimaryCatalogURL, cfg.PrimaryCatalogQuality, client(), log)
		p.SetTimeouts(cfg.SearchTimeout, cfg.DetailsTimeout)
		r.SetCatalog(wrap(p))
	}
	if cfg.SecondaryCatalogURL != "" {
		p := NewSecondaryProvider(cfg.SecondaryCatalogURL, cfg.SecondaryCatalogAppID, cfg.SecondaryCatalogToken, client(), log)
		p.SetTimeouts(cfg.SearchTimeout, cfg.DetailsTimeout)
		r.SetCatalog(wrap(p))
	}
	if cfg.PeerURL != "" {
		p := NewPeerProvider(cfg.PeerURL, cfg.PeerAPIKey, cfg.PeerDownloadsDir, cfg.PeerPollInterval, client(), log)
		p.SetTimeouts(cfg.SearchTimeout, cfg.DetailsTimeout)
		r.SetPeer(p)
	}

	var meta *MetadataLookup
	if cfg.MetadataURL != "" {
		meta = NewMetadataLookup(cfg.MetadataURL, client(), log)
		meta.SetTimeout(cfg.MetadataTimeout)
		r.SetMetadata(meta)
	}
	if cfg.LyricsURL != "" {
		var artwork MetadataProvider
		if meta != nil {
			artwork = meta
		}
		l := NewLyricsLookup(cfg.LyricsURL, artwork, client(), log)
		l.SetTimeouts(0, cfg.MetadataTimeout)
		r.SetLyrics(l)
	}
	return r
}

func (r *Registry) SetCatalog(p CatalogProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("Registering catalog", "provider", p.Tag())
	r.catalogs[p.Tag()] = p
}

func (r *Registry) SetPeer(p PeerTransferProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peer = p
}

func (r *Registry) SetLyrics(p LyricsProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lyrics = p
}

func (r *Registry) SetMetadata(p MetadataProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = p
}

func (r *Registry) Catalog(tag domain.ProviderTag) (CatalogProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.catalogs[tag]
	return p, ok
}

// Catalogs returns the configured catalogs in strategy order.
func (r *Registry) Catalogs() []CatalogProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CatalogProvider, 0, len(r.catalogs))
	for _, tag := range domain.CatalogTags {
		if p, ok := r.catalogs[tag]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) Peer() PeerTransferProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peer
}

func (r *Registry) Lyrics() LyricsProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lyrics
}

func (r *Registry) Metadata() MetadataProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metadata
}

// Status reports which adapters are configured.
type Status struct {
	Catalogs []domain.ProviderTag `json:"catalogs"`
	Peer     bool                 `json:"peer"`
	Lyrics   bool                 `json:"lyrics"`
	Metadata bool                 `json:"metadata"`
}

func (r *Registry) Status() Status {
	s := Status{Catalogs: []domain.ProviderTag{}}
	for _, p := range r.Catalogs() {
		s.Catalogs = append(s.Catalogs, p.Tag())
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s.Peer = r.peer != nil
	s.Lyrics = r.lyrics != nil
	s.Metadata = r.metadata != nil
	return s
}
