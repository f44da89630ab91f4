// Package library holds the durable index of acquired files and the matcher
// that decides whether a request can be served from local storage.
package library

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/storage"
)

// Store is the persistence the index needs. *store.DB satisfies it.
type Store interface {
	RegisterTrack(ctx context.Context, t *domain.DownloadedTrack) (*domain.DownloadedTrack, error)
	GetTrack(ctx context.Context, id int64) (*domain.DownloadedTrack, error)
	GetTrackByExternalID(ctx context.Context, tag domain.ProviderTag, value string) (*domain.DownloadedTrack, error)
	ListArtistCandidates(ctx context.Context, artistNorm string) ([]*domain.DownloadedTrack, error)
	ListActiveTracks(ctx context.Context) ([]*domain.DownloadedTrack, error)
	ListTracks(ctx context.Context, limit int) ([]*domain.DownloadedTrack, error)
	MarkTrackStale(ctx context.Context, id int64) error
	UpdateContentHash(ctx context.Context, id int64, hash string) error
	DeleteTrack(ctx context.Context, id int64) error
	DeleteStaleTracks(ctx context.Context, age time.Duration) (int64, error)
}

// Policy is the text-match precision policy.
type Policy struct {
	TitleThreshold int
	AlbumThreshold int
}

// DefaultPolicy accepts title >= 85 and, when an album is requested, album >= 70.
var DefaultPolicy = Policy{TitleThreshold: 85, AlbumThreshold: 70}

// Index owns DownloadedTrack rows. Writes are serialized in-process.
type Index struct {
	db     Store
	root   string
	policy Policy
	logger *logger.Logger
	mu     sync.Mutex
}

func NewIndex(db Store, root string, policy Policy, log *logger.Logger) *Index {
	if log == nil {
		log = logger.Default()
	}
	return &Index{
		db:     db,
		root:   root,
		policy: policy,
		logger: log.WithComponent("index"),
	}
}

// Root is the library root directory.
func (ix *Index) Root() string { return ix.root }

// Policy returns the precision policy in effect.
func (ix *Index) Policy() Policy { return ix.policy }

// AbsPath resolves a row's local_path under the library root.
func (ix *Index) AbsPath(t *domain.DownloadedTrack) string {
	return storage.Resolve(ix.root, t.LocalPath)
}

// Register upserts a row. It is idempotent on any known external id.
func (ix *Index) Register(ctx context.Context, reg domain.Registration) (*domain.DownloadedTrack, error) {
	if len(reg.ExternalIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one external id is required", domain.ErrInvalidRequest)
	}
	for tag, value := range reg.ExternalIDs {
		if !tag.Valid() || value == "" {
			return nil, fmt.Errorf("%w: malformed external id %s:%s", domain.ErrInvalidRequest, tag, value)
		}
	}
	rel := path.Clean(reg.LocalPath)
	if reg.LocalPath == "" || path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, fmt.Errorf("%w: local path must be relative to the library root, got %q", domain.ErrInvalidRequest, reg.LocalPath)
	}

	row := &domain.DownloadedTrack{
		ExternalIDs: reg.ExternalIDs,
		Title:       reg.Title,
		Artist:      reg.Artist,
		Album:       reg.Album,
		TitleNorm:   Normalize(reg.Title),
		ArtistNorm:  Normalize(reg.Artist),
		AlbumNorm:   Normalize(reg.Album),
		LocalPath:   rel,
		SourceTag:   reg.SourceTag,
		ContentHash: reg.ContentHash,
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	saved, err := ix.db.RegisterTrack(ctx, row)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	ix.logger.Info("Registered track", "track_id", saved.ID, "local_path", saved.LocalPath, "source_tag", saved.SourceTag)
	return saved, nil
}

// LookupByExternal returns the non-stale row owning (tag, value), or nil.
func (ix *Index) LookupByExternal(ctx context.Context, tag domain.ProviderTag, value string) (*domain.DownloadedTrack, error) {
	row, err := ix.db.GetTrackByExternalID(ctx, tag, value)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	if row == nil || row.Stale {
		return nil, nil
	}
	return row, nil
}

// Scored is a text candidate with its similarity scores.
type Scored struct {
	Track      *domain.DownloadedTrack
	TitleScore int
	AlbumScore int
}

// TextCandidates returns non-stale rows that pass the precision policy,
// best first: higher title score, then higher album score, then lower id.
func (ix *Index) TextCandidates(ctx context.Context, artist, title, album string) ([]Scored, error) {
	artistNorm := Normalize(artist)
	titleNorm := Normalize(title)
	albumNorm := Normalize(album)
	if artistNorm == "" || titleNorm == "" {
		return nil, nil
	}

	rows, err := ix.db.ListArtistCandidates(ctx, artistNorm)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	return rank(rows, titleNorm, albumNorm, ix.policy), nil
}

// LookupByText returns the best row passing the precision policy, or nil.
// It does not check the filesystem; Matcher does.
func (ix *Index) LookupByText(ctx context.Context, artist, title, album string) (*domain.DownloadedTrack, error) {
	cands, err := ix.TextCandidates(ctx, artist, title, album)
	if err != nil || len(cands) == 0 {
		return nil, err
	}
	return cands[0].Track, nil
}

func (ix *Index) Get(ctx context.Context, id int64) (*domain.DownloadedTrack, error) {
	row, err := ix.db.GetTrack(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: track %d", domain.ErrNotFound, id)
	}
	return row, nil
}

func (ix *Index) List(ctx context.Context, limit int) ([]*domain.DownloadedTrack, error) {
	return ix.db.ListTracks(ctx, limit)
}

func (ix *Index) MarkStale(ctx context.Context, id int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.db.MarkTrackStale(ctx, id); err != nil {
		return domain.Wrap(domain.ErrLocalIO, err)
	}
	ix.logger.Warn("Marked track stale", "track_id", id)
	return nil
}

func (ix *Index) Delete(ctx context.Context, id int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.db.DeleteTrack(ctx, id); err != nil {
		return domain.Wrap(domain.ErrLocalIO, err)
	}
	return nil
}

// Verify checks a row's file. When checkHash is set the file is hashed:
// a missing content_hash is filled in, a mismatch fails. Failures mark
// the row stale and return integrity_failed.
func (ix *Index) Verify(ctx context.Context, id int64, checkHash bool) (*domain.DownloadedTrack, error) {
	row, err := ix.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return row, ix.verifyRow(ctx, row, checkHash)
}

func (ix *Index) verifyRow(ctx context.Context, row *domain.DownloadedTrack, checkHash bool) error {
	abs := ix.AbsPath(row)
	if _, err := storage.CheckFile(abs); err != nil {
		if errors.Is(err, domain.ErrIntegrityFailed) && !row.Stale {
			if mErr := ix.MarkStale(ctx, row.ID); mErr != nil {
				return mErr
			}
			row.Stale = true
		}
		return err
	}
	if !checkHash {
		return nil
	}

	hash, err := storage.HashFile(abs)
	if err != nil {
		return domain.Wrap(domain.ErrLocalIO, err)
	}
	switch {
	case row.ContentHash == "":
		ix.mu.Lock()
		err := ix.db.UpdateContentHash(ctx, row.ID, hash)
		ix.mu.Unlock()
		if err != nil {
			return domain.Wrap(domain.ErrLocalIO, err)
		}
		row.ContentHash = hash
	case row.ContentHash != hash:
		if !row.Stale {
			if err := ix.MarkStale(ctx, row.ID); err != nil {
				return err
			}
			row.Stale = true
		}
		return fmt.Errorf("%w: hash mismatch for %s", domain.ErrIntegrityFailed, row.LocalPath)
	}
	return nil
}

// Sweep verifies every non-stale row, marking failures stale, then deletes
// rows that have been stale for longer than retention.
func (ix *Index) Sweep(ctx context.Context, checkHash bool, retention time.Duration) (domain.SweepReport, error) {
	var report domain.SweepReport

	rows, err := ix.db.ListActiveTracks(ctx)
	if err != nil {
		return report, domain.Wrap(domain.ErrLocalIO, err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		hadHash := row.ContentHash != ""
		err := ix.verifyRow(ctx, row, checkHash)
		switch {
		case errors.Is(err, domain.ErrIntegrityFailed):
			report.MarkedStale++
		case err != nil:
			return report, err
		case checkHash && !hadHash:
			report.HashesUpdated++
		}
	}

	ix.mu.Lock()
	deleted, err := ix.db.DeleteStaleTracks(ctx, retention)
	ix.mu.Unlock()
	if err != nil {
		return report, domain.Wrap(domain.ErrLocalIO, err)
	}
	report.Deleted = int(deleted)

	ix.logger.Info("Sweep complete",
		"checked", report.Checked,
		"marked_stale", report.MarkedStale,
		"deleted", report.Deleted,
		"hashes_updated", report.HashesUpdated,
	)
	return report, nil
}
