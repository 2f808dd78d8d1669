package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hourflow/hourflow/internal/sync/domain"
)

// ReadCollection reads a typed record collection from the local store. It
// fails soft: a missing key, malformed JSON, or individually malformed
// records yield an empty (or partial) slice, never an error. Corrupt entries
// are overwritten on the next successful write.
func ReadCollection[T domain.Validatable](ctx context.Context, s Store, key Key) []T {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("local read failed, treating as empty", "key", key, "error", err)
		}
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("malformed collection, treating as empty", "key", key)
		return nil
	}

	records := make([]T, 0, len(entries))
	for _, entry := range entries {
		var rec T
		if err := json.Unmarshal(entry, &rec); err != nil || !rec.Valid() {
			slog.Warn("dropping malformed record", "key", key)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// WriteCollection serializes and stores a typed record collection. Unlike
// reads, write failures surface to the caller: the initiating operation must
// not assume persistence succeeded.
func WriteCollection[T any](ctx context.Context, s Store, key Key, records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadSettings reads the settings singleton, substituting the zero value on
// a missing key or malformed data.
func ReadSettings(ctx context.Context, s Store, key Key) domain.Settings {
	var settings domain.Settings
	raw, err := s.Get(ctx, key)
	if err != nil {
		return settings
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		slog.Warn("malformed settings, using defaults", "key", key)
		return domain.Settings{}
	}
	return settings
}

// WriteSettings serializes and stores the settings singleton.
func WriteSettings(ctx context.Context, s Store, key Key, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
