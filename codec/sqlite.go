package codec

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robertmeta/journal-cli/model"
	_ "modernc.org/sqlite"
)

// SQLite stores the journal in a SQLite database.
type SQLite struct {
	path string
	db   *sql.DB
	opts options
}

// NewSQLite creates a codec for the database at dbPath. The file is not
// touched until the first Load or Save.
func NewSQLite(dbPath string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLite{
		path: dbPath,
		db:   db,
		opts: newOptions(opts),
	}, nil
}

// Path returns the database path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// createSchema creates the entries table.
func (s *SQLite) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		position INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		mood TEXT NOT NULL,
		goal TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// hasTable reports whether the entries table exists.
func (s *SQLite) hasTable() (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'entries'").Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Read returns the stored entries in position order. It never writes to
// the database; a file without an entries table holds no entries.
func (s *SQLite) Read() ([]model.Entry, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, err
	}

	exists, err := s.hasTable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !exists {
		return []model.Entry{}, nil
	}

	rows, err := s.db.Query("SELECT date, mood, goal, text, created_at FROM entries ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.Date, &e.Mood, &e.Goal, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Load implements Codec.
func (s *SQLite) Load() []model.Entry {
	entries, err := s.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.opts.report(s.path, err)
		}
		return []model.Entry{}
	}

	s.opts.logger.Debug().Str("path", s.path).Int("entries", len(entries)).Msg("journal loaded")
	return entries
}

// Save implements Codec. The table is replaced inside one transaction.
func (s *SQLite) Save(entries []model.Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := s.createSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO entries (position, date, mood, goal, text, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.Exec(i+1, e.Date, e.Mood, e.Goal, e.Text, e.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entries: %w", err)
	}

	s.opts.logger.Debug().Str("path", s.path).Int("entries", len(entries)).Msg("journal saved")
	return nil
}
