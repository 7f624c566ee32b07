package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veesix-networks/vppifd/pkg/opdb"
)

const DefaultPath = "/var/lib/vppifd/journal.db"

const schema = `
CREATE TABLE IF NOT EXISTS history (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_history_namespace ON history(namespace);
`

// Store is an opdb.Store on a single sqlite file.
type Store struct {
	db   *sql.DB
	path string
}

var _ opdb.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single writer keeps sqlite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (namespace, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, namespace, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

func (s *Store) Load(ctx context.Context, namespace string, fn opdb.LoadFunc) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM history WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE namespace = ?`, namespace)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
