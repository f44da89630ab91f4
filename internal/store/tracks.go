package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/navistream/internal/domain"
)

const trackColumns = `id, title, artist, album, title_norm, artist_norm, album_norm,
	local_path, source_tag, content_hash, stale, stale_at, created_at, updated_at`

// RegisterTrack inserts or updates the row owning any of t's external ids.
// An id match updates local_path and content_hash in place; otherwise the
// row is upserted on local_path. All ids are attached to the resulting row.
func (db *DB) RegisterTrack(ctx context.Context, t *domain.DownloadedTrack) (*domain.DownloadedTrack, error) {
	if len(t.ExternalIDs) == 0 {
		return nil, errors.New("register requires at least one external id")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin register tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	id, err := trackIDByExternal(ctx, tx, t.ExternalIDs.List())
	if err != nil {
		return nil, err
	}

	if id != 0 {
		var other int64
		err := tx.GetContext(ctx, &other, `SELECT id FROM downloaded_tracks WHERE local_path = ? AND id != ?`, t.LocalPath, id)
		switch {
		case err == nil:
			// the file at this path was replaced; its previous row becomes part of this one
			if err := mergeTrack(ctx, tx, other, id); err != nil {
				return nil, err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("failed to check path owner: %w", err)
		}

		t.ID = id
		_, err = tx.NamedExecContext(ctx, `UPDATE downloaded_tracks SET
			local_path = :local_path, content_hash = :content_hash,
			stale = 0, stale_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = :id`, t)
		if err != nil {
			return nil, fmt.Errorf("failed to update track: %w", err)
		}
	} else {
		query := `INSERT INTO downloaded_tracks (
			title, artist, album, title_norm, artist_norm, album_norm, local_path, source_tag, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			stale = 0, stale_at = NULL, updated_at = CURRENT_TIMESTAMP
		RETURNING id`
		err := tx.QueryRowxContext(ctx, query,
			t.Title, t.Artist, t.Album, t.TitleNorm, t.ArtistNorm, t.AlbumNorm,
			t.LocalPath, t.SourceTag, t.ContentHash,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert track: %w", err)
		}
	}

	for _, ext := range t.ExternalIDs.List() {
		_, err := tx.ExecContext(ctx, `INSERT INTO track_external_ids (provider_tag, id_value, track_id)
			VALUES (?, ?, ?) ON CONFLICT(provider_tag, id_value) DO NOTHING`, ext.Provider, ext.Value, id)
		if err != nil {
			return nil, fmt.Errorf("failed to attach external id %s: %w", ext, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit register: %w", err)
	}

	return db.GetTrack(ctx, id)
}

func trackIDByExternal(ctx context.Context, q sqlx.QueryerContext, ids []domain.ExternalID) (int64, error) {
	for _, ext := range ids {
		var id int64
		err := sqlx.GetContext(ctx, q, &id,
			`SELECT track_id FROM track_external_ids WHERE provider_tag = ? AND id_value = ?`, ext.Provider, ext.Value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to look up external id %s: %w", ext, err)
		}
		return id, nil
	}
	return 0, nil
}

func mergeTrack(ctx context.Context, tx *sqlx.Tx, from, into int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE track_external_ids SET track_id = ? WHERE track_id = ?`, into, from); err != nil {
		return fmt.Errorf("failed to move external ids: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM downloaded_tracks WHERE id = ?`, from); err != nil {
		return fmt.Errorf("failed to remove merged track: %w", err)
	}
	return nil
}

// GetTrack returns the row with id, or nil when absent.
func (db *DB) GetTrack(ctx context.Context, id int64) (*domain.DownloadedTrack, error) {
	return db.getOne(ctx, `SELECT `+trackColumns+` FROM downloaded_tracks WHERE id = ?`, id)
}

// GetTrackByExternalID returns the row owning (tag, value), stale or not.
func (db *DB) GetTrackByExternalID(ctx context.Context, tag domain.ProviderTag, value string) (*domain.DownloadedTrack, error) {
	return db.getOne(ctx, `SELECT `+trackColumns+` FROM downloaded_tracks
		WHERE id = (SELECT track_id FROM track_external_ids WHERE provider_tag = ? AND id_value = ?)`, tag, value)
}

// GetTrackByPath returns the row registered at a library-relative path.
func (db *DB) GetTrackByPath(ctx context.Context, localPath string) (*domain.DownloadedTrack, error) {
	return db.getOne(ctx, `SELECT `+trackColumns+` FROM downloaded_tracks WHERE local_path = ?`, localPath)
}

// ListArtistCandidates returns non-stale rows whose artist_norm contains artistNorm.
func (db *DB) ListArtistCandidates(ctx context.Context, artistNorm string) ([]*domain.DownloadedTrack, error) {
	return db.selectTracks(ctx, `SELECT `+trackColumns+` FROM downloaded_tracks
		WHERE stale = 0 AND instr(artist_norm, ?) > 0 ORDER BY id`, artistNorm)
}

// ListActiveTracks returns every non-stale row.
func (db *DB) ListActiveTracks(ctx context.Context) ([]*domain.DownloadedTrack, error) {
	return db.selectTracks(ctx, `SELECT `+trackColumns+` FROM downloaded_tracks WHERE stale = 0 ORDER BY id`)
}

// ListTracks returns the most recent rows, stale included.
func (db *DB) ListTracks(ctx context.Context, limit int) ([]*domain.DownloadedTrack, error) {
	return db.selectTracks(ctx, `SELECT `+trackColumns+` FROM downloaded_tracks ORDER BY id DESC LIMIT ?`, limit)
}

func (db *DB) MarkTrackStale(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE downloaded_tracks
		SET stale = 1, stale_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stale = 0`, id)
	return err
}

func (db *DB) UpdateContentHash(ctx context.Context, id int64, hash string) error {
	result, err := db.ExecContext(ctx, `UPDATE downloaded_tracks SET content_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("track with id %d not found", id)
	}
	return nil
}

func (db *DB) DeleteTrack(ctx context.Context, id int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM track_external_ids WHERE track_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM downloaded_tracks WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteStaleTracks removes rows that have been stale for longer than age.
func (db *DB) DeleteStaleTracks(ctx context.Context, age time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(age.Seconds()))

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const expired = `SELECT id FROM downloaded_tracks WHERE stale = 1 AND stale_at <= datetime('now', ?)`
	if _, err := tx.ExecContext(ctx, `DELETE FROM track_external_ids WHERE track_id IN (`+expired+`)`, modifier); err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM downloaded_tracks WHERE id IN (`+expired+`)`, modifier)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (db *DB) getOne(ctx context.Context, query string, args ...interface{}) (*domain.DownloadedTrack, error) {
	var track domain.DownloadedTrack
	err := db.GetContext(ctx, &track, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := db.attachExternalIDs(ctx, []*domain.DownloadedTrack{&track}); err != nil {
		return nil, err
	}
	return &track, nil
}

func (db *DB) selectTracks(ctx context.Context, query string, args ...interface{}) ([]*domain.DownloadedTrack, error) {
	var tracks []*domain.DownloadedTrack
	if err := db.SelectContext(ctx, &tracks, query, args...); err != nil {
		return nil, err
	}
	if err := db.attachExternalIDs(ctx, tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (db *DB) attachExternalIDs(ctx context.Context, tracks []*domain.DownloadedTrack) error {
	if len(tracks) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.DownloadedTrack, len(tracks))
	ids := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		t.ExternalIDs = domain.ExternalIDs{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	query, args, err := sqlx.In(`SELECT provider_tag, id_value, track_id FROM track_external_ids WHERE track_id IN (?)`, ids)
	if err != nil {
		return err
	}

	var rows []struct {
		Provider domain.ProviderTag `db:"provider_tag"`
		Value    string             `db:"id_value"`
		TrackID  int64              `db:"track_id"`
	}
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load external ids: %w", err)
	}
	for _, r := range rows {
		if t, ok := byID[r.TrackID]; ok {
			t.ExternalIDs[r.Provider] = r.Value
		}
	}
	return nil
}
