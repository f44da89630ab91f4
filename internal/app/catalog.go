package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/domain"
)

const maxSearchLimit = 100

func (s *Service) catalog(tag domain.ProviderTag) (catalog.CatalogProvider, error) {
	cat, ok := s.providers.Catalog(tag)
	if !ok {
		return nil, fmt.Errorf("%w: catalog %q is not configured", domain.ErrNotFound, tag)
	}
	return cat, nil
}

// SearchCatalog runs a search against one configured catalog.
func (s *Service) SearchCatalog(ctx context.Context, tag domain.ProviderTag, query string, kind domain.RecordKind, limit int) ([]domain.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxSearchLimit)

	cat, err := s.catalog(tag)
	if err != nil {
		return nil, err
	}
	return cat.Search(ctx, query, kind, limit)
}

func (s *Service) AlbumDetails(ctx context.Context, tag domain.ProviderTag, id string) (*domain.AlbumDetails, error) {
	cat, err := s.catalog(tag)
	if err != nil {
		return nil, err
	}
	return cat.AlbumDetails(ctx, id)
}

func (s *Service) ArtistDetails(ctx context.Context, tag domain.ProviderTag, id string) (*domain.ArtistDetails, error) {
	cat, err := s.catalog(tag)
	if err != nil {
		return nil, err
	}
	return cat.ArtistDetails(ctx, id)
}
