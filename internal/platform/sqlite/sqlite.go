// Package sqlite opens the embedded database and bootstraps its schema.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS giveaways (
	id            TEXT PRIMARY KEY,
	community_id  INTEGER NOT NULL,
	channel_id    INTEGER NOT NULL,
	creator_id    INTEGER NOT NULL,
	prize         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	starts_at     TEXT,
	ends_at       TEXT NOT NULL,
	winner_count  INTEGER NOT NULL,
	required_role INTEGER NOT NULL DEFAULT 0,
	state         TEXT NOT NULL,
	message_ref   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entries (
	giveaway_id TEXT NOT NULL,
	user_id     INTEGER NOT NULL,
	entered_at  TEXT NOT NULL,
	PRIMARY KEY (giveaway_id, user_id)
);

CREATE TABLE IF NOT EXISTS winners (
	giveaway_id TEXT NOT NULL,
	user_id     INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	selected_at TEXT NOT NULL,
	PRIMARY KEY (giveaway_id, position)
);

CREATE TABLE IF NOT EXISTS community_config (
	community_id     INTEGER PRIMARY KEY,
	manager_role_ids TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_giveaways_community_state ON giveaways (community_id, state);
CREATE INDEX IF NOT EXISTS idx_giveaways_state_ends ON giveaways (state, ends_at);
CREATE INDEX IF NOT EXISTS idx_giveaways_message_ref ON giveaways (message_ref);
CREATE INDEX IF NOT EXISTS idx_entries_user ON entries (user_id);
`

// Open opens (and creates if needed) the database at path and applies
// the schema. The caller owns the returned handle.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps every statement on the same in-memory DB.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
