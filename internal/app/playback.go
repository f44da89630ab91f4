package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/storage"
	"github.com/cesargomez89/navistream/internal/stream"
)

// Playback returns a stream of d at quality q, acquiring the track first on
// a library miss. The caller must consume or close the stream.
func (s *Service) Playback(ctx context.Context, d domain.TrackDescriptor, q domain.Quality) (*stream.Stream, *domain.DownloadedTrack, error) {
	row, err := s.pipeline.Acquire(ctx, d)
	if err != nil {
		return nil, nil, err
	}

	st, err := s.engine.Transcode(ctx, s.index.AbsPath(row), q)
	if errors.Is(err, domain.ErrIntegrityFailed) {
		// The file went away between match and open.
		s.logger.Warn("Published file unusable, re-acquiring", "track_id", row.ID, "local_path", row.LocalPath)
		if mErr := s.index.MarkStale(ctx, row.ID); mErr != nil {
			return nil, nil, mErr
		}
		if row, err = s.pipeline.Acquire(ctx, d); err != nil {
			return nil, nil, err
		}
		st, err = s.engine.Transcode(ctx, s.index.AbsPath(row), q)
	}
	if err != nil {
		return nil, nil, err
	}
	return st, row, nil
}

// Metadata reads the technical and artistic tags of a library file.
func (s *Service) Metadata(ctx context.Context, filename string) (*domain.AudioMetadata, error) {
	abs, err := s.libraryPath(filename)
	if err != nil {
		return nil, err
	}
	md, err := s.reader.Read(ctx, abs)
	if err != nil {
		return nil, err
	}
	md.Path = filename
	return md, nil
}

// libraryPath resolves a library-relative name, refusing anything that
// would leave the root.
func (s *Service) libraryPath(filename string) (string, error) {
	rel := path.Clean(strings.ReplaceAll(filename, `\`, "/"))
	if filename == "" || rel == "." || rel == ".." || path.IsAbs(rel) || strings.HasPrefix(rel, "../") || filepath.IsAbs(filename) {
		return "", fmt.Errorf("%w: %q is not a library path", domain.ErrInvalidRequest, filename)
	}
	return storage.Resolve(s.index.Root(), rel), nil
}
