package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetCache returns the cached bytes for key, or nil when missing or expired.
func (db *DB) GetCache(ctx context.Context, key string) ([]byte, error) {
	type cacheRow struct {
		ExpiresAt sql.NullInt64 `db:"expires_at"`
		Data      []byte        `db:"data"`
	}

	var row cacheRow
	err := db.GetContext(ctx, &row, "SELECT data, expires_at FROM cache WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.ExpiresAt.Valid && time.Now().Unix() >= row.ExpiresAt.Int64 {
		_, _ = db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
		return nil, nil
	}

	return row.Data, nil
}

func (db *DB) SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).Unix(), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO cache (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, key, data, expiresAt)
	return err
}

// PurgeExpiredCache drops every expired entry and returns how many were removed.
func (db *DB) PurgeExpiredCache(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (db *DB) ClearCache(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "DELETE FROM cache")
	return err
}
