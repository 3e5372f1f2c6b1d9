// Package sqlite is the local embedded kv.Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"resumind-backend/internal/shared/storage/db"
	"resumind-backend/internal/shared/storage/kv"
)

// Store keeps entries in the kv_entries table of a SQLite file.
type Store struct {
	DB *sql.DB
}

// Open creates the database file if needed and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	database, err := db.Connect(ctx, db.DriverSQLite, path, db.DefaultSQLiteOptions())
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, database, db.DriverSQLite); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{DB: database}, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return []byte(value), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}
