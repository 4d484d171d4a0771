package checkin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_log_entries_user_kind
    ON log_entries (user_id, kind, created_at DESC);`

// SQLiteStore persists entries in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkin db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply checkin schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO log_entries (user_id, kind, title, created_at) VALUES (?, ?, ?, ?)`,
		entry.UserID, string(entry.Kind), entry.Title, entry.CreatedAt.UnixNano())
	if err != nil {
		return Entry{}, fmt.Errorf("insert log entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("read log entry id: %w", err)
	}
	entry.ID = id
	return entry, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, kind Kind) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, title, created_at FROM log_entries
         WHERE user_id = ? AND kind = ?
         ORDER BY created_at DESC, id DESC`,
		userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e       Entry
			k       string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &k, &e.Title, &created); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Kind = Kind(k)
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
