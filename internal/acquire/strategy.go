package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
)

var (
	losslessExt = map[string]bool{"flac": true, "wav": true, "alac": true, "aiff": true, "ape": true}
	audioExt    = map[string]bool{
		"flac": true, "wav": true, "alac": true, "aiff": true, "ape": true,
		"mp3": true, "m4a": true, "ogg": true, "opus": true, "aac": true,
	}
)

// source is a resolved origin for the bytes of one track.
type source struct {
	tag     domain.ProviderTag
	id      string
	ext     string
	details *domain.TrackDetails
	open    func(ctx context.Context) (io.ReadCloser, error)
}

// resolve walks the strategies in order: each catalog by id (searching for
// one when the descriptor has text only), then the peer network.
func (p *Pipeline) resolve(ctx context.Context, d domain.TrackDescriptor, log *logger.Logger) (*source, error) {
	var transient error
	note := func(stage string, tag domain.ProviderTag, err error) {
		log.Info("Strategy skipped", "provider", tag, "stage", stage, "error", err)
		if errors.Is(err, domain.ErrProviderUnavailable) {
			transient = err
		}
	}

	for _, cat := range p.providers.Catalogs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tag := cat.Tag()
		id, ok := d.ID(tag)
		if !ok {
			if !d.HasText() {
				continue
			}
			derived, err := p.deriveID(ctx, cat, d)
			if err != nil {
				note("search", tag, err)
				continue
			}
			id = derived
		}

		dl, err := cat.ResolveDownload(ctx, id)
		if err != nil {
			note("resolve", tag, err)
			continue
		}
		details, err := cat.TrackDetails(ctx, id)
		if err != nil {
			log.Debug("Track details unavailable", "provider", tag, "id", id, "error", err)
			details = nil
		}

		streamURL := dl.StreamURL
		return &source{
			tag:     tag,
			id:      id,
			ext:     extensionFor(dl.MIME, dl.Codec),
			details: details,
			open: func(ctx context.Context) (io.ReadCloser, error) {
				return p.fetch.open(ctx, streamURL)
			},
		}, nil
	}

	if peer := p.providers.Peer(); peer != nil && d.HasText() {
		c, err := p.searchPeer(ctx, peer, d, log)
		if err == nil {
			return &source{
				tag: domain.ProviderPeer,
				ext: "." + c.Extension,
				open: func(ctx context.Context) (io.ReadCloser, error) {
					return peer.Transfer(ctx, c)
				},
			}, nil
		}
		note("peer", domain.ProviderPeer, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if transient != nil {
		return nil, domain.Wrap(domain.ErrProviderUnavailable, fmt.Errorf("no source reachable: %w", transient))
	}
	return nil, fmt.Errorf("%w: no provider offers %q by %q", domain.ErrNotAcquirable, d.Title, d.Artist)
}

// deriveID searches cat for the descriptor's text and returns the id of the
// best record passing the precision policy.
func (p *Pipeline) deriveID(ctx context.Context, cat catalog.CatalogProvider, d domain.TrackDescriptor) (string, error) {
	records, err := cat.Search(ctx, d.Artist+" "+d.Title, domain.KindSong, 5)
	if err != nil {
		return "", err
	}

	artistNorm := library.Normalize(d.Artist)
	titleNorm := library.Normalize(d.Title)
	albumNorm := library.Normalize(d.Album)
	policy := p.index.Policy()

	best, bestTitle, bestAlbum := "", -1, -1
	for _, r := range records {
		if !strings.Contains(library.Normalize(r.Artist), artistNorm) {
			continue
		}
		ts, as, ok := policy.Scores(titleNorm, albumNorm, library.Normalize(r.DisplayName), library.Normalize(r.Album))
		if !ok {
			continue
		}
		if ts > bestTitle || (ts == bestTitle && as > bestAlbum) {
			best, bestTitle, bestAlbum = r.ExternalID.Value, ts, as
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no search result for %q passes the match policy", domain.ErrNotFound, d.Title)
	}
	return best, nil
}

// searchPeer polls until a poll yields an acceptable candidate, the search
// completes without one, or the poll timeout passes.
func (p *Pipeline) searchPeer(ctx context.Context, peer catalog.PeerTransferProvider, d domain.TrackDescriptor, log *logger.Logger) (domain.PeerCandidate, error) {
	query := d.Artist + " " + d.Title
	searchID, err := peer.StartSearch(ctx, query)
	if err != nil {
		return domain.PeerCandidate{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		cands, complete, err := peer.SearchResults(ctx, searchID)
		switch {
		case err == nil:
			if best, ok := BestCandidate(cands, d.Title); ok {
				log.Info("Peer candidate chosen", "username", best.Username, "filename", best.Filename,
					"bit_rate", best.BitRate, "queue_length", best.QueueLength)
				return best, nil
			}
			if complete {
				return domain.PeerCandidate{}, fmt.Errorf("%w: peer search %q finished without an acceptable file", domain.ErrNotFound, query)
			}
		case !errors.Is(err, domain.ErrProviderUnavailable):
			return domain.PeerCandidate{}, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.PeerCandidate{}, fmt.Errorf("%w: no acceptable peer file within %s", domain.ErrNotFound, p.pollTimeout)
			}
			return domain.PeerCandidate{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// BestCandidate picks among audio files whose name contains the title:
// lossless first, then highest bitrate, then shortest queue.
func BestCandidate(cands []domain.PeerCandidate, title string) (domain.PeerCandidate, bool) {
	titleNorm := library.Normalize(title)
	ok := lo.Filter(cands, func(c domain.PeerCandidate, _ int) bool {
		if !audioExt[c.Extension] {
			return false
		}
		return titleNorm == "" || strings.Contains(candidateName(c.Filename), titleNorm)
	})
	if len(ok) == 0 {
		return domain.PeerCandidate{}, false
	}

	sort.SliceStable(ok, func(i, j int) bool {
		a, b := ok[i], ok[j]
		if la, lb := losslessExt[a.Extension], losslessExt[b.Extension]; la != lb {
			return la
		}
		if a.BitRate != b.BitRate {
			return a.BitRate > b.BitRate
		}
		return a.QueueLength < b.QueueLength
	})
	return ok[0], true
}

// candidateName normalizes the base name of a remote path, treating
// separators such as "_" as spaces.
func candidateName(remote string) string {
	base := path.Base(strings.ReplaceAll(remote, `\`, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("_", " ", ".", " ").Replace(base)
	return library.Normalize(base)
}

func extensionFor(mime, codec string) string {
	switch strings.ToLower(mime) {
	case constants.MimeTypeMP3:
		return constants.ExtMP3
	case constants.MimeTypeMP4:
		return constants.ExtM4A
	case constants.MimeTypeOGG:
		return constants.ExtOGG
	case constants.MimeTypeWAV:
		return constants.ExtWAV
	case constants.MimeTypeFLAC:
		return constants.ExtFLAC
	}
	if strings.Contains(strings.ToLower(codec), "mp3") {
		return constants.ExtMP3
	}
	return constants.ExtFLAC
}
