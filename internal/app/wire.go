package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cesargomez89/navistream/internal/acquire"
	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/config"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/mediainfo"
	"github.com/cesargomez89/navistream/internal/store"
	"github.com/cesargomez89/navistream/internal/stream"
)

// Build opens the store and assembles a Service from cfg. Staged files left
// by a previous process are removed before it returns. The caller closes
// the returned DB.
func Build(cfg *config.Config, log *logger.Logger) (*Service, *store.DB, error) {
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	providers := catalog.NewRegistryFromConfig(cfg, db, log)
	index := library.NewIndex(db, cfg.LibraryRoot, library.Policy{
		TitleThreshold: cfg.TitleThreshold,
		AlbumThreshold: cfg.AlbumThreshold,
	}, log)

	images := httpclient.NewClient(nil, httpclient.Options{})
	pipeline := acquire.NewPipeline(index, providers, acquire.Options{
		PathTemplate:   cfg.PathTemplate,
		WorkerPoolSize: cfg.WorkerPoolSize,
		PollTimeout:    cfg.PeerPollTimeout,
		PollInterval:   cfg.PeerPollInterval,
		ArtworkTimeout: cfg.ArtworkTimeout,
	}, log)

	if _, err := pipeline.Recover(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to recover library root: %w", err)
	}
	settings := store.NewSettingsRepo(db)
	if err := settings.SetTime(context.Background(), store.SettingLastRecoveryAt, time.Now()); err != nil {
		log.Warn("Failed to record recovery time", "error", err)
	}

	svc := New(Deps{
		Index:          index,
		Pipeline:       pipeline,
		Engine:         stream.NewEngine(cfg.FFmpegPath, log),
		Reader:         mediainfo.NewReader(cfg.FFprobePath, log),
		Providers:      providers,
		Cache:          db,
		Images:         images,
		Settings:       settings,
		ArtworkTTL:     cfg.ArtworkCacheTTL,
		ArtworkTimeout: cfg.ArtworkTimeout,
	}, log)
	return svc, db, nil
}
