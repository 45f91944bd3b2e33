// Package ledger records what the publisher pushed to WordPress in a local
// SQLite database, so `novelpress status` can report it.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS publications (
	path         TEXT PRIMARY KEY,
	novel        TEXT NOT NULL DEFAULT '',
	slug         TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	post_id      INTEGER NOT NULL DEFAULT 0,
	media_id     INTEGER NOT NULL DEFAULT 0,
	checksum     TEXT NOT NULL DEFAULT '',
	action       TEXT NOT NULL DEFAULT '',
	published_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_publications_novel ON publications(novel);
`

// Entry is one published chapter.
type Entry struct {
	Path        string
	Novel       string
	Slug        string
	Title       string
	PostID      int
	MediaID     int
	Checksum    string
	Action      string // "created" or "updated"
	PublishedAt time.Time
}

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(dsn string) (*DB, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record inserts or replaces the entry for e.Path.
func (db *DB) Record(e Entry) error {
	if e.PublishedAt.IsZero() {
		e.PublishedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO publications (path, novel, slug, title, post_id, media_id, checksum, action, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			novel        = excluded.novel,
			slug         = excluded.slug,
			title        = excluded.title,
			post_id      = excluded.post_id,
			media_id     = excluded.media_id,
			checksum     = excluded.checksum,
			action       = excluded.action,
			published_at = excluded.published_at
	`, e.Path, e.Novel, e.Slug, e.Title, e.PostID, e.MediaID, e.Checksum, e.Action, e.PublishedAt)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// Get returns the entry for path, or nil when the path was never published.
func (db *DB) Get(path string) (*Entry, error) {
	row := db.conn.QueryRow(`
		SELECT path, novel, slug, title, post_id, media_id, checksum, action, published_at
		FROM publications WHERE path = ?`, path)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get: %w", err)
	}
	return e, nil
}

// List returns entries for novel ordered by slug; an empty novel lists everything.
func (db *DB) List(novel string) ([]Entry, error) {
	rows, err := db.conn.Query(`
		SELECT path, novel, slug, title, post_id, media_id, checksum, action, published_at
		FROM publications
		WHERE ? = '' OR novel = ?
		ORDER BY novel, slug`, novel, novel)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	if err := s.Scan(&e.Path, &e.Novel, &e.Slug, &e.Title, &e.PostID, &e.MediaID, &e.Checksum, &e.Action, &e.PublishedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
