package library

import (
	"context"
	"errors"
	"sort"

	"github.com/samber/lo"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/storage"
)

// Matcher resolves a descriptor to an indexed file that is present on disk.
// It never walks the library root looking for filenames.
type Matcher struct {
	index  *Index
	logger *logger.Logger
}

func NewMatcher(index *Index, log *logger.Logger) *Matcher {
	if log == nil {
		log = logger.Default()
	}
	return &Matcher{index: index, logger: log.WithComponent("matcher")}
}

// Match returns the row serving d, or nil on a miss. External ids are
// tried first, then text under the precision policy. Rows whose file is
// missing or empty are marked stale and skipped.
func (m *Matcher) Match(ctx context.Context, d domain.TrackDescriptor) (*domain.DownloadedTrack, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	for _, id := range d.IDs {
		row, err := m.index.LookupByExternal(ctx, id.Provider, id.Value)
		if err != nil {
			return nil, err
		}
		if row == nil {
			continue
		}
		ok, err := m.usable(ctx, row)
		if err != nil {
			return nil, err
		}
		if ok {
			m.logger.Debug("Matched by external id", "external_id", id.String(), "track_id", row.ID)
			return row, nil
		}
	}

	if !d.HasText() {
		return nil, nil
	}

	cands, err := m.index.TextCandidates(ctx, d.Artist, d.Title, d.Album)
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		ok, err := m.usable(ctx, c.Track)
		if err != nil {
			return nil, err
		}
		if ok {
			m.logger.Debug("Matched by text",
				"track_id", c.Track.ID,
				"title_score", c.TitleScore,
				"album_score", c.AlbumScore,
			)
			return c.Track, nil
		}
	}

	return nil, nil
}

func (m *Matcher) usable(ctx context.Context, row *domain.DownloadedTrack) (bool, error) {
	_, err := storage.CheckFile(m.index.AbsPath(row))
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, domain.ErrIntegrityFailed) {
		return false, err
	}
	m.logger.Warn("Indexed file unusable", "track_id", row.ID, "local_path", row.LocalPath, "error", err)
	if err := m.index.MarkStale(ctx, row.ID); err != nil {
		return false, err
	}
	return false, nil
}

// Scores applies p to normalized strings. An empty albumNorm skips the
// album check and scores 0.
func (p Policy) Scores(titleNorm, albumNorm, candTitleNorm, candAlbumNorm string) (title, album int, ok bool) {
	title = Ratio(titleNorm, candTitleNorm)
	if title < p.TitleThreshold {
		return title, 0, false
	}
	if albumNorm != "" {
		album = Ratio(albumNorm, candAlbumNorm)
		if album < p.AlbumThreshold {
			return title, album, false
		}
	}
	return title, album, true
}

func rank(rows []*domain.DownloadedTrack, titleNorm, albumNorm string, p Policy) []Scored {
	scored := lo.FilterMap(rows, func(row *domain.DownloadedTrack, _ int) (Scored, bool) {
		s := Scored{Track: row}
		var ok bool
		s.TitleScore, s.AlbumScore, ok = p.Scores(titleNorm, albumNorm, row.TitleNorm, row.AlbumNorm)
		return s, ok
	})

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.TitleScore != b.TitleScore {
			return a.TitleScore > b.TitleScore
		}
		if a.AlbumScore != b.AlbumScore {
			return a.AlbumScore > b.AlbumScore
		}
		return a.Track.ID < b.Track.ID
	})
	return scored
}
