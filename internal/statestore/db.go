// Package statestore is the persistent, tag-keyed append-only store of
// numeric readings (C5): one row per (tag, value, timestamp), backed by
// SQLite, with a per-tag in-memory DataFrame cache over a rolling window.
package statestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection opened in WAL mode with a single writer,
// matching the no-cgo embedded-database idiom this repo standardizes on.
type DB struct {
	sql *sql.DB
}

// Open creates or opens the SQLite database at dir/homectl.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := filepath.Join(dir, "homectl.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error { return d.sql.Close() }
func (d *DB) Ping() error  { return d.sql.Ping() }

// migrate runs idempotent schema migrations for the state store's part
// of the schema; internal/command owns its own tables in its own
// migrate().
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tags (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			channel TEXT NOT NULL,
			name    TEXT NOT NULL,
			UNIQUE(channel, name)
		)`,
		`CREATE TABLE IF NOT EXISTS readings (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			tag_id    INTEGER NOT NULL REFERENCES tags(id),
			value     REAL NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_tag_ts ON readings(tag_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS availability (
			source                    TEXT NOT NULL,
			item                      TEXT NOT NULL,
			last_seen                 INTEGER NOT NULL,
			marked_offline            BOOLEAN NOT NULL DEFAULT 0,
			considered_offline_after  INTEGER NOT NULL,
			entry_updated             INTEGER NOT NULL,
			PRIMARY KEY (source, item)
		)`,
		`CREATE TABLE IF NOT EXISTS user_triggers (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			target    TEXT NOT NULL,
			value     REAL NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_triggers_target_ts ON user_triggers(target, timestamp)`,
	}
	for _, m := range migrations {
		if _, err := d.sql.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
