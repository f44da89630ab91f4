package store

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sqlx.DB
}

// Connection parameters applied by the driver to every pooled connection.
// Immediate transactions take the write lock up front so concurrent
// registers queue on busy_timeout instead of failing on snapshot upgrade.
var connParams = []struct{ key, value string }{
	{"journal_mode", "_pragma=journal_mode(WAL)"},
	{"busy_timeout", "_pragma=busy_timeout(30000)"},
	{"foreign_keys", "_pragma=foreign_keys(1)"},
	{"_txlock", "_txlock=immediate"},
}

func NewSQLiteDB(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func withPragmas(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range connParams {
		if strings.Contains(dsn, p.key) {
			continue
		}
		b.WriteString(sep)
		b.WriteString(p.value)
		sep = "&"
	}
	return b.String()
}
