package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/remote"
	"github.com/hourflow/hourflow/internal/sync/store"
)

// memStore is an in-memory store.Store for service tests. Locked because
// the worker tests read it while the worker goroutine writes.
type memStore struct {
	mu      sync.Mutex
	values  map[store.Key]json.RawMessage
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{values: make(map[store.Key]json.RawMessage)}
}

func (m *memStore) Get(_ context.Context, key store.Key) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Put(_ context.Context, key store.Key, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("disk full")
	}
	m.values[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key store.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memStore) Keys(_ context.Context, prefix string) ([]store.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []store.Key
	for k := range m.values {
		if strings.HasPrefix(string(k), prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) set(key store.Key, value json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *memStore) get(key store.Key) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *memStore) ApplyMigrations() error       { return nil }
func (m *memStore) Close() error                 { return nil }
func (m *memStore) Ping(_ context.Context) error { return nil }

// fakeRemote is an in-memory remote.Store. Locked for the same reason as
// memStore.
type fakeRemote struct {
	mu        sync.Mutex
	docs      map[string]json.RawMessage
	failFetch bool
	failPut   bool
	puts      int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]json.RawMessage)}
}

func (f *fakeRemote) Fetch(_ context.Context, userID, set string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch {
		return nil, errors.New("backend down")
	}
	v, ok := f.docs[userID+"/"+set]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return v, nil
}

func (f *fakeRemote) Put(_ context.Context, userID, set string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return errors.New("backend down")
	}
	f.puts++
	f.docs[userID+"/"+set] = value
	return nil
}

func (f *fakeRemote) setDoc(userID, set string, value json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[userID+"/"+set] = value
}

func (f *fakeRemote) doc(userID, set string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[userID+"/"+set]
}

func (f *fakeRemote) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestReconciler(s store.Store, r remote.Store) *Reconciler {
	return &Reconciler{
		Store:      s,
		Remote:     r,
		Locks:      store.NewKeyedLock(),
		Logger:     testLogger(),
		MatchField: domain.MatchField,
	}
}

func TestReconcilerSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	key := store.ScopedKey("u1", domain.SetClients)

	t.Run("unavailable without remote", func(t *testing.T) {
		t.Parallel()

		r := newTestReconciler(newMemStore(), nil)
		_, err := r.Sync(ctx, "u1", domain.AllSets())
		require.ErrorIs(t, err, remote.ErrUnavailable)
	})

	t.Run("unavailable without identity", func(t *testing.T) {
		t.Parallel()

		r := newTestReconciler(newMemStore(), newFakeRemote())
		_, err := r.Sync(ctx, "", domain.AllSets())
		require.ErrorIs(t, err, identity.ErrNoIdentity)
	})

	t.Run("both absent is a no-op", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		r := newTestReconciler(newMemStore(), rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Zero(t, changed)
		require.Zero(t, rem.putCount())
	})

	t.Run("fresh device pulls remote copy", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		rem.setDoc("u1", domain.SetClients, json.RawMessage(`[{"id":"a","name":"Acme"}]`))
		st := newMemStore()
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Equal(t, 1, changed)
		require.JSONEq(t, `[{"id":"a","name":"Acme"}]`, string(st.get(key)))
	})

	t.Run("fresh account pushes local copy", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		st := newMemStore()
		st.set(key, json.RawMessage(`[{"id":"a","name":"Acme"}]`))
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Equal(t, 1, changed)
		require.JSONEq(t, `[{"id":"a","name":"Acme"}]`, string(rem.doc("u1", domain.SetClients)))
	})

	t.Run("identical sides write nothing", func(t *testing.T) {
		t.Parallel()

		doc := `[{"id":"a","name":"Acme"}]`
		rem := newFakeRemote()
		rem.setDoc("u1", domain.SetClients, json.RawMessage(doc))
		st := newMemStore()
		st.set(key, json.RawMessage(doc))
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Zero(t, changed)
		require.Zero(t, rem.putCount())
	})

	t.Run("conflicting edits converge remote-wins per record", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		rem.setDoc("u1", domain.SetClients, json.RawMessage(
			`[{"id":"a","name":"Acme","email":"remote@acme"},{"id":"c","name":"Cyberdyne"}]`))
		st := newMemStore()
		st.set(key, json.RawMessage(
			`[{"id":"a","name":"Acme","email":"local@acme"},{"id":"b","name":"Initech"}]`))
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Equal(t, 1, changed)

		want := `[
			{"id":"a","name":"Acme","email":"remote@acme"},
			{"id":"b","name":"Initech"},
			{"id":"c","name":"Cyberdyne"}
		]`
		require.JSONEq(t, want, string(st.get(key)))
		require.JSONEq(t, want, string(rem.doc("u1", domain.SetClients)))
	})

	t.Run("settings replaced wholesale by remote", func(t *testing.T) {
		t.Parallel()

		settingsKey := store.ScopedKey("u1", domain.SetSettings)
		rem := newFakeRemote()
		rem.setDoc("u1", domain.SetSettings, json.RawMessage(`{"businessName":"New Name","defaultRate":120}`))
		st := newMemStore()
		st.set(settingsKey, json.RawMessage(`{"businessName":"Old Name","defaultRate":100}`))
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetSettings})
		require.NoError(t, err)
		require.Equal(t, 1, changed)
		require.JSONEq(t, `{"businessName":"New Name","defaultRate":120}`, string(st.get(settingsKey)))
	})

	t.Run("malformed local yields to remote", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		rem.setDoc("u1", domain.SetClients, json.RawMessage(`[{"id":"a","name":"Acme"}]`))
		st := newMemStore()
		st.set(key, json.RawMessage(`{{{not json`))
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Equal(t, 1, changed)
		require.JSONEq(t, `[{"id":"a","name":"Acme"}]`, string(st.get(key)))
	})

	t.Run("one failing set does not abort the rest", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		rem.failFetch = true
		r := newTestReconciler(newMemStore(), rem)

		changed, err := r.Sync(ctx, "u1", domain.AllSets())
		require.NoError(t, err)
		require.Zero(t, changed)
	})

	t.Run("second pass is stable", func(t *testing.T) {
		t.Parallel()

		rem := newFakeRemote()
		rem.setDoc("u1", domain.SetClients, json.RawMessage(`[{"id":"a","name":"Acme"}]`))
		st := newMemStore()
		st.set(key, json.RawMessage(`[{"id":"b","name":"Initech"}]`))
		r := newTestReconciler(st, rem)

		changed, err := r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Equal(t, 1, changed)

		changed, err = r.Sync(ctx, "u1", []string{domain.SetClients})
		require.NoError(t, err)
		require.Zero(t, changed)
	})
}
