package store

const Schema = `
CREATE TABLE IF NOT EXISTS downloaded_tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,

	-- Metadata as registered
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	album TEXT NOT NULL DEFAULT '',

	-- Matcher keys
	title_norm TEXT NOT NULL,
	artist_norm TEXT NOT NULL,
	album_norm TEXT NOT NULL DEFAULT '',

	-- File, relative to the library root
	local_path TEXT NOT NULL UNIQUE,
	source_tag TEXT NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',

	-- Integrity
	stale BOOLEAN NOT NULL DEFAULT 0,
	stale_at DATETIME,

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_downloaded_tracks_artist_norm ON downloaded_tracks(artist_norm);
CREATE INDEX IF NOT EXISTS idx_downloaded_tracks_stale ON downloaded_tracks(stale);

CREATE TABLE IF NOT EXISTS track_external_ids (
	provider_tag TEXT NOT NULL,
	id_value TEXT NOT NULL,
	track_id INTEGER NOT NULL,
	PRIMARY KEY (provider_tag, id_value),
	FOREIGN KEY (track_id) REFERENCES downloaded_tracks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_track_external_ids_track_id ON track_external_ids(track_id);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at INTEGER -- unix seconds, NULL never expires
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
