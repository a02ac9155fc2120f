package credentials

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteScope is a durable Scope backed by a single-table SQLite database.
type SQLiteScope struct {
	db *sqlx.DB
}

// NewSQLiteScope opens (creating if needed) the credential database at path.
// The parent directory is created when missing.
func NewSQLiteScope(path string) (*SQLiteScope, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create credential directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS credentials (
key TEXT PRIMARY KEY,
value TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credential schema: %w", err)
	}

	return &SQLiteScope{db: db}, nil
}

// Get returns the stored value, or "" when the key is absent.
func (s *SQLiteScope) Get(key string) (string, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM credentials WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential %q: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces a value.
func (s *SQLiteScope) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a value. Deleting an absent key is not an error.
func (s *SQLiteScope) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM credentials WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete credential %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteScope) Close() error {
	return s.db.Close()
}
