package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/remote"
	"github.com/hourflow/hourflow/internal/sync/store"
)

// Reconciler converges the local and remote copies of each record-set.
// Sequence-typed sets merge element-wise (remote wins per record); the
// settings singleton is replaced wholesale by the remote copy. Failures on
// one record-set never abort the rest of the pass.
type Reconciler struct {
	Store  store.Store
	Remote remote.Store
	Locks  *store.KeyedLock
	Logger *slog.Logger

	// MatchField returns the identifying secondary field for a set.
	// Defaults to domain.MatchField via app wiring.
	MatchField func(set string) string
}

// Sync runs one reconcile pass over the named record-sets and returns how
// many of them changed. It never fails outright on per-set errors; the error
// return reports only the unavailable conditions (no identity, no remote
// backend) under which no reconciliation can happen at all.
func (r *Reconciler) Sync(ctx context.Context, userID string, sets []string) (int, error) {
	if r.Remote == nil {
		return 0, remote.ErrUnavailable
	}
	if userID == "" {
		return 0, identity.ErrNoIdentity
	}

	changed := 0
	for _, set := range sets {
		didChange, err := r.syncSet(ctx, userID, set)
		if err != nil {
			r.Logger.Warn("record-set sync failed, continuing",
				"set", set, "error", err)
			continue
		}
		if didChange {
			changed++
		}
	}

	r.Logger.Info("sync pass completed", "sets", len(sets), "changed", changed)
	return changed, nil
}

// syncSet executes the read-merge-write sequence for one record-set under
// its key lock, so a concurrent pass or UI write on the same set cannot
// interleave and lose an update.
func (r *Reconciler) syncSet(ctx context.Context, userID, set string) (bool, error) {
	key := store.ScopedKey(userID, set)
	release := r.Locks.Acquire(key)
	defer release()

	remoteVal, err := r.Remote.Fetch(ctx, userID, set)
	remoteAbsent := false
	if err != nil {
		if !errors.Is(err, remote.ErrNotFound) {
			return false, fmt.Errorf("fetch remote: %w", err)
		}
		remoteAbsent = true
	}

	localVal, err := r.Store.Get(ctx, key)
	localAbsent := false
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("read local: %w", err)
		}
		localAbsent = true
	}
	if !localAbsent && !isValidJSON(localVal) {
		// Corrupt local entry: substitute "absent" and let the remote copy
		// overwrite it below.
		r.Logger.Warn("malformed local record-set", "key", key)
		localAbsent = true
	}

	switch {
	case localAbsent && remoteAbsent:
		return false, nil

	case localAbsent:
		if err := r.Store.Put(ctx, key, remoteVal); err != nil {
			return false, fmt.Errorf("write local: %w", err)
		}
		return true, nil

	case remoteAbsent:
		if err := r.Remote.Put(ctx, userID, set, localVal); err != nil {
			return false, fmt.Errorf("write remote: %w", err)
		}
		return true, nil
	}

	if !isJSONArray(localVal) || !isJSONArray(remoteVal) {
		// Non-sequence value (settings): remote wins wholesale.
		if jsonEqual(localVal, remoteVal) {
			return false, nil
		}
		if err := r.Store.Put(ctx, key, remoteVal); err != nil {
			return false, fmt.Errorf("write local: %w", err)
		}
		return true, nil
	}

	merged, err := mergeCollections(localVal, remoteVal, r.matchField(set))
	if err != nil {
		return false, fmt.Errorf("merge: %w", err)
	}

	return r.writeBoth(ctx, userID, set, key, localVal, remoteVal, merged)
}

// writeBoth writes the merged collection back to whichever sides differ
// from it and reports whether anything changed.
func (r *Reconciler) writeBoth(
	ctx context.Context,
	userID, set string,
	key store.Key,
	localVal, remoteVal, merged json.RawMessage,
) (bool, error) {
	changed := false

	if !jsonEqual(merged, localVal) {
		if err := r.Store.Put(ctx, key, merged); err != nil {
			return changed, fmt.Errorf("write local: %w", err)
		}
		changed = true
	}

	if !jsonEqual(merged, remoteVal) {
		if err := r.Remote.Put(ctx, userID, set, merged); err != nil {
			return changed, fmt.Errorf("write remote: %w", err)
		}
		changed = true
	}

	return changed, nil
}

func (r *Reconciler) matchField(set string) string {
	if r.MatchField == nil {
		return ""
	}
	return r.MatchField(set)
}
