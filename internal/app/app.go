// Package app is the core facade the HTTP layer and the admin CLI talk to.
package app

import (
	"context"
	"time"

	"github.com/cesargomez89/navistream/internal/acquire"
	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/mediainfo"
	"github.com/cesargomez89/navistream/internal/store"
	"github.com/cesargomez89/navistream/internal/stream"
)

// CacheStore is the key-value cache artwork lives in. *store.DB satisfies it.
type CacheStore interface {
	catalog.Cache
	PurgeExpiredCache(ctx context.Context) (int64, error)
}

// Deps are the components a Service is built from. Cache, Images and
// Settings may be nil.
type Deps struct {
	Index     *library.Index
	Pipeline  *acquire.Pipeline
	Engine    *stream.Engine
	Reader    *mediainfo.Reader
	Providers *catalog.Registry
	Cache     CacheStore
	Images    *httpclient.Client
	Settings  *store.SettingsRepo

	ArtworkTTL     time.Duration
	ArtworkTimeout time.Duration
	StaleRetention time.Duration
}

type Service struct {
	index     *library.Index
	matcher   *library.Matcher
	pipeline  *acquire.Pipeline
	engine    *stream.Engine
	reader    *mediainfo.Reader
	providers *catalog.Registry
	artwork   *artworkCache
	settings  *store.SettingsRepo
	logger    *logger.Logger

	staleRetention time.Duration
}

func New(deps Deps, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	if deps.StaleRetention <= 0 {
		deps.StaleRetention = constants.DefaultStaleRetention
	}
	return &Service{
		index:          deps.Index,
		matcher:        library.NewMatcher(deps.Index, log),
		pipeline:       deps.Pipeline,
		engine:         deps.Engine,
		reader:         deps.Reader,
		providers:      deps.Providers,
		artwork:        newArtworkCache(deps.Cache, deps.Images, deps.ArtworkTTL, deps.ArtworkTimeout, log),
		settings:       deps.Settings,
		logger:         log.WithComponent("app"),
		staleRetention: deps.StaleRetention,
	}
}

// Acquire makes d available locally and returns its row.
func (s *Service) Acquire(ctx context.Context, d domain.TrackDescriptor) (*domain.DownloadedTrack, error) {
	return s.pipeline.Acquire(ctx, d)
}

// Status describes the configured adapters, the jobs in flight and when
// the library was last swept.
type Status struct {
	Providers   catalog.Status    `json:"providers"`
	Jobs        []acquire.JobInfo `json:"jobs"`
	LastSweepAt *time.Time        `json:"last_sweep_at,omitempty"`
}

func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		Providers: s.providers.Status(),
		Jobs:      s.pipeline.Jobs(),
	}
	if s.settings != nil {
		t, err := s.settings.GetTime(ctx, store.SettingLastSweepAt)
		if err != nil {
			s.logger.Warn("Failed to read last sweep time", "error", err)
		} else if !t.IsZero() {
			st.LastSweepAt = &t
		}
	}
	return st
}

// Ready reports whether any acquisition strategy is configured.
func (s *Service) Ready() error {
	return s.pipeline.Ready()
}

// Wait blocks until in-flight acquisitions finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	return s.pipeline.Wait(ctx)
}
