package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/store"
)

const defaultLimit = 30

// SearchIndex returns the local row matching the text, or nil.
func (s *Service) SearchIndex(ctx context.Context, artist, title, album string) (*domain.DownloadedTrack, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: artist and title are required", domain.ErrInvalidRequest)
	}
	return s.matcher.Match(ctx, domain.TrackDescriptor{Artist: artist, Title: title, Album: album})
}

func (s *Service) ListDownloads(ctx context.Context, limit int) ([]*domain.DownloadedTrack, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.index.List(ctx, limit)
}

func (s *Service) DeleteDownload(ctx context.Context, id int64) error {
	return s.pipeline.Remove(ctx, id)
}

// Verify rehashes one row's file.
func (s *Service) Verify(ctx context.Context, id int64) (*domain.DownloadedTrack, error) {
	return s.index.Verify(ctx, id, true)
}

// Sweep checks every live row, drops long-stale ones and purges expired
// cache entries.
func (s *Service) Sweep(ctx context.Context, checkHash bool) (domain.SweepReport, error) {
	report, err := s.index.Sweep(ctx, checkHash, s.staleRetention)
	if err != nil {
		return report, err
	}
	if n, err := s.artwork.purge(ctx); err != nil {
		s.logger.Warn("Failed to purge expired cache", "error", err)
	} else if n > 0 {
		s.logger.Info("Purged expired cache entries", "count", n)
	}
	if s.settings != nil {
		if err := s.settings.SetTime(ctx, store.SettingLastSweepAt, time.Now()); err != nil {
			s.logger.Warn("Failed to record sweep time", "error", err)
		}
	}
	return report, nil
}
