package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hourflow/hourflow/internal/sync/store"
)

// Migrator copies pre-existing unscoped record-sets into the user-scoped
// namespace the first time an identity becomes available. Legacy keys are
// read exactly once here and never written again.
type Migrator struct {
	Store  store.Store
	Locks  *store.KeyedLock
	Logger *slog.Logger
}

// MigrateOnce copies each record-set's legacy value to its namespaced key
// unless the namespaced key already holds a value. Idempotent: safe to
// invoke on every session start. Returns how many record-sets were copied.
func (m *Migrator) MigrateOnce(ctx context.Context, userID string, sets []string) (int, error) {
	if userID == "" {
		// Nothing to namespace into; anonymous sessions keep the bare keys.
		return 0, nil
	}

	migrated := 0
	for _, set := range sets {
		ok, err := m.migrateSet(ctx, userID, set)
		if err != nil {
			m.Logger.Warn("record-set migration failed, continuing",
				"set", set, "error", err)
			continue
		}
		if ok {
			migrated++
		}
	}

	if migrated > 0 {
		m.Logger.Info("legacy records migrated", "user", userID, "sets", migrated)
	}
	return migrated, nil
}

func (m *Migrator) migrateSet(ctx context.Context, userID, set string) (bool, error) {
	key := store.ScopedKey(userID, set)
	release := m.Locks.Acquire(key)
	defer release()

	// Already migrated (or the user has written since): skip.
	if _, err := m.Store.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("check namespaced key: %w", err)
	}

	legacy, err := m.Store.Get(ctx, store.LegacyKey(set))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read legacy key: %w", err)
	}

	if err := m.Store.Put(ctx, key, legacy); err != nil {
		return false, fmt.Errorf("copy to namespaced key: %w", err)
	}
	return true, nil
}
