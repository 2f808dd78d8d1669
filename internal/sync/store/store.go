package store

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("store: not found")

// Key addresses one record-set value in the local store. Use ScopedKey to
// derive keys; raw record-set names are only valid pre-migration.
type Key string

func (k Key) String() string { return string(k) }

// Store is the local persistence interface. Values are JSON-encoded
// record-set collections (or the settings singleton). Concrete drivers
// (sqlite) implement this; operations never touch the network.
type Store interface {
	// Get returns the raw value under key, or ErrNotFound.
	Get(ctx context.Context, key Key) (json.RawMessage, error)

	// Put stores value under key, replacing any previous value. A returned
	// error means the value was not persisted (storage full or unavailable).
	Put(ctx context.Context, key Key, value json.RawMessage) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// Keys lists stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]Key, error)

	ApplyMigrations() error

	// Close releases underlying resources.
	Close() error

	// Ping verifies the storage medium is still available.
	Ping(ctx context.Context) error
}
