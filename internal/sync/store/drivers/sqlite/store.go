package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hourflow/hourflow/internal/sync/store"
	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed local store driver. One row per record-set key;
// values are stored as JSON text so a browser-era export can be imported
// verbatim.
type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single writer avoids SQLITE_BUSY under concurrent sync + edits.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context, key store.Key) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE key = ?`, key.String(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(value), nil
}

func (s *Store) Put(ctx context.Context, key store.Key, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key.String(), string(value), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) Delete(ctx context.Context, key store.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key.String())
	return err
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]store.Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM records WHERE key LIKE ? || '%' ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []store.Key
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, store.Key(k))
	}
	return keys, rows.Err()
}
