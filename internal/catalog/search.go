package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/samber/lo"

	"github.com/cesargomez89/navistream/internal/domain"
)

// Search queries one record kind. An empty kind searches songs.
func (p *HifiProvider) Search(ctx context.Context, query string, kind domain.RecordKind, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 25
	}

	var (
		records []domain.Record
		err     error
	)
	switch kind {
	case domain.KindArtist:
		records, err = p.searchArtists(ctx, query)
	case domain.KindAlbum:
		records, err = p.searchAlbums(ctx, query)
	case domain.KindSong, "":
		records, err = p.searchTracks(ctx, query)
	default:
		return nil, fmt.Errorf("%w: unknown search kind %q", domain.ErrInvalidRequest, kind)
	}
	if err != nil {
		return nil, err
	}

	records = completeRecords(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (p *HifiProvider) searchArtists(ctx context.Context, query string) ([]domain.Record, error) {
	u := fmt.Sprintf("%s/search/?a=%s", p.baseURL, url.QueryEscape(query))
	var resp APISearchArtistsResponse
	if err := p.getJSON(ctx, p.searchTimeout, u, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp.Data.Artists.Items, func(item APIArtistWithPicture, _ int) domain.Record {
		return item.ToRecord(p)
	}), nil
}

func (p *HifiProvider) searchAlbums(ctx context.Context, query string) ([]domain.Record, error) {
	u := fmt.Sprintf("%s/search/?al=%s", p.baseURL, url.QueryEscape(query))
	var resp APISearchAlbumsResponse
	if err := p.getJSON(ctx, p.searchTimeout, u, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp.Data.Albums.Items, func(item APIAlbumItem, _ int) domain.Record {
		return item.ToRecord(p)
	}), nil
}

func (p *HifiProvider) searchTracks(ctx context.Context, query string) ([]domain.Record, error) {
	u := fmt.Sprintf("%s/search/?s=%s", p.baseURL, url.QueryEscape(query))
	var resp APISearchTracksResponse
	if err := p.getJSON(ctx, p.searchTimeout, u, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp.Data.Items, func(item APITrackItem, _ int) domain.Record {
		return item.ToRecord(p)
	}), nil
}

// completeRecords drops records missing an id, a name or an artist.
func completeRecords(records []domain.Record) []domain.Record {
	return lo.Filter(records, func(r domain.Record, _ int) bool {
		return r.ExternalID.Value != "" && r.DisplayName != "" && r.Artist != ""
	})
}
