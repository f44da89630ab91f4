package acquire

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/tagging"
)

// tag gathers artwork, lyrics and genre in parallel and writes them into the
// staged file. Every lookup is optional; a failure leaves that field empty
// and the file is published regardless.
func (p *Pipeline) tag(ctx context.Context, tmpPath, format string, d domain.TrackDescriptor, info trackInfo, log *logger.Logger) {
	if !tagging.Supported(format) {
		log.Debug("Skipping tags for format", "format", format)
		return
	}

	if err := p.pool.Acquire(ctx, 1); err != nil {
		log.Warn("Tagging slot unavailable", "error", err)
		return
	}
	defer p.pool.Release(1)

	var (
		cover  []byte
		lyrics string
		genre  = info.Genre
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cover = p.artwork(gctx, tmpPath, d, info, log)
		return nil
	})
	if lp := p.providers.Lyrics(); lp != nil {
		g.Go(func() error {
			text, err := lp.Lyrics(gctx, info.Artist, info.Title, info.Album, 0)
			if err != nil {
				log.Debug("No lyrics", "error", err)
				return nil
			}
			lyrics = text
			return nil
		})
	}
	if mp := p.providers.Metadata(); mp != nil && genre == "" {
		g.Go(func() error {
			found, err := mp.LookupGenre(gctx, info.Artist, info.Title)
			if err != nil {
				log.Debug("No genre", "error", err)
				return nil
			}
			genre = found
			return nil
		})
	}
	_ = g.Wait()

	md := tagging.Metadata{
		Title:       info.Title,
		Artist:      info.Artist,
		Album:       info.Album,
		Genre:       genre,
		Lyrics:      lyrics,
		TrackNumber: info.TrackNumber,
		Year:        info.Year,
	}
	if err := tagging.TagFile(tmpPath, format, md, cover); err != nil {
		log.Warn("Failed to write tags", "path", tmpPath, "error", err)
		return
	}
	log.Debug("Tags written", "has_cover", len(cover) > 0, "has_lyrics", lyrics != "", "genre", genre)
}

// artwork tries the caller's hint, then the catalog's cover, then a lookup
// keyed on the file's own tags.
func (p *Pipeline) artwork(ctx context.Context, tmpPath string, d domain.TrackDescriptor, info trackInfo, log *logger.Logger) []byte {
	candidates := []string{d.ArtworkHintURL, info.ArtworkURL}
	for _, u := range candidates {
		if u == "" {
			continue
		}
		data, err := p.fetch.image(ctx, u)
		if err == nil && len(data) > 0 {
			return data
		}
		log.Debug("Artwork fetch failed", "url", u, "error", err)
	}

	lp := p.providers.Lyrics()
	if lp == nil {
		return nil
	}
	u, err := lp.OnlineCover(ctx, tmpPath)
	if err != nil {
		log.Debug("No online cover", "error", err)
		return nil
	}
	data, err := p.fetch.image(ctx, u)
	if err != nil {
		log.Debug("Online cover fetch failed", "url", u, "error", err)
		return nil
	}
	return data
}
