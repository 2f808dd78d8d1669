// Package remote defines the capability contract shared by the remote
// document store drivers. Drivers convert transport failures into errors the
// reconciler can isolate; "document does not exist yet" is a normal state
// reported as ErrNotFound, never conflated with network or auth failure.
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound means the document has not been created yet. Not an error
	// condition for the reconciler: there is simply nothing to merge from.
	ErrNotFound = errors.New("remote: document not found")

	// ErrUnavailable means the remote side cannot be used at all (no
	// backend configured, connection not established). Callers degrade to
	// local-only operation.
	ErrUnavailable = errors.New("remote: unavailable")
)

// Store is the remote side of a record-set. Both drivers (docbin, userdb)
// implement it.
type Store interface {
	// Fetch returns the remote copy of a user's record-set, or ErrNotFound.
	Fetch(ctx context.Context, userID, set string) (json.RawMessage, error)

	// Put stores the record-set, creating the remote document on first
	// store and updating it in place thereafter.
	Put(ctx context.Context, userID, set string, value json.RawMessage) error
}
