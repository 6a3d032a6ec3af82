package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("store: not found")

const timeLayout = "2006-01-02 15:04:05.999999999"

// Store provides SQLite-backed persistence for users, channels, memberships
// and messages. All methods are safe for concurrent use; SQLite serializes
// writes internally.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		nickname      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		avatar_url    TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		last_seen     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channels (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		avatar_url  TEXT NOT NULL DEFAULT '',
		admin_code  TEXT NOT NULL UNIQUE,
		creator_id  TEXT NOT NULL REFERENCES users(id),
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channel_members (
		channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role       TEXT NOT NULL DEFAULT 'member' CHECK(role IN ('admin', 'member')),
		joined_at  TEXT NOT NULL,
		PRIMARY KEY (channel_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id                TEXT PRIMARY KEY,
		channel_id        TEXT REFERENCES channels(id) ON DELETE CASCADE,
		sender_id         TEXT NOT NULL REFERENCES users(id),
		receiver_id       TEXT REFERENCES users(id),
		content           TEXT NOT NULL,
		is_direct_message INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL,
		CHECK ((channel_id IS NULL) != (receiver_id IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_members_user ON channel_members(user_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
