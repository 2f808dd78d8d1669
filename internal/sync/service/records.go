package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/remote"
	"github.com/hourflow/hourflow/internal/sync/store"
	"github.com/hourflow/hourflow/pkg/idx"
)

var ErrRecordNotFound = errors.New("service: record not found")

// Records owns UI-originated reads and writes of clients, projects, and time
// entries. Writes go to the local store immediately under the record-set's
// key lock; the reconciler converges them with the remote copy
// asynchronously. Updates and cascade deletes additionally push the affected
// sets to the remote side as part of the same logical operation, so a stale
// remote copy cannot win the changed record back on the next merge.
type Records struct {
	Store  store.Store
	Remote remote.Store // optional; nil means local-only
	Locks  *store.KeyedLock
	Logger *slog.Logger
}

// --- clients ---

func (s *Records) ListClients(ctx context.Context, userID string) []domain.Client {
	return store.ReadCollection[domain.Client](ctx, s.Store, store.ScopedKey(userID, domain.SetClients))
}

func (s *Records) CreateClient(ctx context.Context, userID string, c domain.Client) (domain.Client, error) {
	if c.Name == "" {
		return domain.Client{}, errors.New("service: client name is required")
	}
	c.ID = idx.New().String()
	c.CreatedAt = time.Now().UTC()

	key := store.ScopedKey(userID, domain.SetClients)
	release := s.Locks.Acquire(key)
	defer release()

	clients := append(store.ReadCollection[domain.Client](ctx, s.Store, key), c)
	if err := store.WriteCollection(ctx, s.Store, key, clients); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (s *Records) UpdateClient(ctx context.Context, userID string, c domain.Client) error {
	key := store.ScopedKey(userID, domain.SetClients)
	release := s.Locks.Acquire(key)
	defer release()

	clients := store.ReadCollection[domain.Client](ctx, s.Store, key)
	for i := range clients {
		if clients[i].ID == c.ID {
			c.CreatedAt = clients[i].CreatedAt
			clients[i] = c
			if err := store.WriteCollection(ctx, s.Store, key, clients); err != nil {
				return err
			}
			s.pushSets(ctx, userID, domain.SetClients)
			return nil
		}
	}
	return ErrRecordNotFound
}

// DeleteClient removes a client and cascades: every project referencing it
// and every time entry referencing those projects go in the same logical
// operation. Locks are taken in a fixed order (clients, projects,
// timeEntries) to avoid deadlock with concurrent cascades.
func (s *Records) DeleteClient(ctx context.Context, userID, clientID string) error {
	clientsKey := store.ScopedKey(userID, domain.SetClients)
	projectsKey := store.ScopedKey(userID, domain.SetProjects)
	entriesKey := store.ScopedKey(userID, domain.SetTimeEntries)

	releaseClients := s.Locks.Acquire(clientsKey)
	defer releaseClients()
	releaseProjects := s.Locks.Acquire(projectsKey)
	defer releaseProjects()
	releaseEntries := s.Locks.Acquire(entriesKey)
	defer releaseEntries()

	clients := store.ReadCollection[domain.Client](ctx, s.Store, clientsKey)
	kept := clients[:0:0]
	found := false
	for _, c := range clients {
		if c.ID == clientID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return ErrRecordNotFound
	}

	projects := store.ReadCollection[domain.Project](ctx, s.Store, projectsKey)
	doomed := make(map[string]bool)
	keptProjects := projects[:0:0]
	for _, p := range projects {
		if p.ClientID == clientID {
			doomed[p.ID] = true
			continue
		}
		keptProjects = append(keptProjects, p)
	}

	entries := store.ReadCollection[domain.TimeEntry](ctx, s.Store, entriesKey)
	keptEntries := entries[:0:0]
	for _, e := range entries {
		if doomed[e.ProjectID] {
			continue
		}
		keptEntries = append(keptEntries, e)
	}

	if err := store.WriteCollection(ctx, s.Store, clientsKey, kept); err != nil {
		return err
	}
	if err := store.WriteCollection(ctx, s.Store, projectsKey, keptProjects); err != nil {
		return err
	}
	if err := store.WriteCollection(ctx, s.Store, entriesKey, keptEntries); err != nil {
		return err
	}

	s.pushSets(ctx, userID, domain.SetClients, domain.SetProjects, domain.SetTimeEntries)
	return nil
}

// --- projects ---

func (s *Records) ListProjects(ctx context.Context, userID string) []domain.Project {
	return store.ReadCollection[domain.Project](ctx, s.Store, store.ScopedKey(userID, domain.SetProjects))
}

func (s *Records) CreateProject(ctx context.Context, userID string, p domain.Project) (domain.Project, error) {
	if p.Name == "" {
		return domain.Project{}, errors.New("service: project name is required")
	}
	if p.Status == "" {
		p.Status = domain.ProjectActive
	}
	p.ID = idx.New().String()
	p.CreatedAt = time.Now().UTC()

	key := store.ScopedKey(userID, domain.SetProjects)
	release := s.Locks.Acquire(key)
	defer release()

	projects := append(store.ReadCollection[domain.Project](ctx, s.Store, key), p)
	if err := store.WriteCollection(ctx, s.Store, key, projects); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (s *Records) UpdateProject(ctx context.Context, userID string, p domain.Project) error {
	key := store.ScopedKey(userID, domain.SetProjects)
	release := s.Locks.Acquire(key)
	defer release()

	projects := store.ReadCollection[domain.Project](ctx, s.Store, key)
	for i := range projects {
		if projects[i].ID == p.ID {
			p.CreatedAt = projects[i].CreatedAt
			projects[i] = p
			if err := store.WriteCollection(ctx, s.Store, key, projects); err != nil {
				return err
			}
			s.pushSets(ctx, userID, domain.SetProjects)
			return nil
		}
	}
	return ErrRecordNotFound
}

// DeleteProject removes a project and cascades to its time entries.
func (s *Records) DeleteProject(ctx context.Context, userID, projectID string) error {
	projectsKey := store.ScopedKey(userID, domain.SetProjects)
	entriesKey := store.ScopedKey(userID, domain.SetTimeEntries)

	releaseProjects := s.Locks.Acquire(projectsKey)
	defer releaseProjects()
	releaseEntries := s.Locks.Acquire(entriesKey)
	defer releaseEntries()

	projects := store.ReadCollection[domain.Project](ctx, s.Store, projectsKey)
	kept := projects[:0:0]
	found := false
	for _, p := range projects {
		if p.ID == projectID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrRecordNotFound
	}

	entries := store.ReadCollection[domain.TimeEntry](ctx, s.Store, entriesKey)
	keptEntries := entries[:0:0]
	for _, e := range entries {
		if e.ProjectID == projectID {
			continue
		}
		keptEntries = append(keptEntries, e)
	}

	if err := store.WriteCollection(ctx, s.Store, projectsKey, kept); err != nil {
		return err
	}
	if err := store.WriteCollection(ctx, s.Store, entriesKey, keptEntries); err != nil {
		return err
	}

	s.pushSets(ctx, userID, domain.SetProjects, domain.SetTimeEntries)
	return nil
}

// --- time entries ---

func (s *Records) ListTimeEntries(ctx context.Context, userID string) []domain.TimeEntry {
	return store.ReadCollection[domain.TimeEntry](ctx, s.Store, store.ScopedKey(userID, domain.SetTimeEntries))
}

func (s *Records) CreateTimeEntry(ctx context.Context, userID string, e domain.TimeEntry) (domain.TimeEntry, error) {
	if e.Hours < 0 {
		return domain.TimeEntry{}, errors.New("service: hours must be non-negative")
	}
	e.ID = idx.New().String()
	e.CreatedAt = time.Now().UTC()

	key := store.ScopedKey(userID, domain.SetTimeEntries)
	release := s.Locks.Acquire(key)
	defer release()

	entries := append(store.ReadCollection[domain.TimeEntry](ctx, s.Store, key), e)
	if err := store.WriteCollection(ctx, s.Store, key, entries); err != nil {
		return domain.TimeEntry{}, err
	}
	return e, nil
}

func (s *Records) DeleteTimeEntry(ctx context.Context, userID, entryID string) error {
	key := store.ScopedKey(userID, domain.SetTimeEntries)
	release := s.Locks.Acquire(key)
	defer release()

	entries := store.ReadCollection[domain.TimeEntry](ctx, s.Store, key)
	kept := entries[:0:0]
	found := false
	for _, e := range entries {
		if e.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return ErrRecordNotFound
	}
	return store.WriteCollection(ctx, s.Store, key, kept)
}

// --- settings ---

func (s *Records) GetSettings(ctx context.Context, userID string) domain.Settings {
	return store.ReadSettings(ctx, s.Store, store.ScopedKey(userID, domain.SetSettings))
}

func (s *Records) PutSettings(ctx context.Context, userID string, settings domain.Settings) error {
	key := store.ScopedKey(userID, domain.SetSettings)
	release := s.Locks.Acquire(key)
	defer release()

	return store.WriteSettings(ctx, s.Store, key, settings)
}

// --- clear all ---

// ClearAll replaces a record-set with an empty sequence on both sides.
func (s *Records) ClearAll(ctx context.Context, userID, set string) error {
	key := store.ScopedKey(userID, set)
	release := s.Locks.Acquire(key)
	defer release()

	if err := s.Store.Put(ctx, key, []byte(`[]`)); err != nil {
		return fmt.Errorf("clear %s: %w", set, err)
	}
	s.pushSets(ctx, userID, set)
	return nil
}

// pushSets propagates freshly written record-sets to the remote side so an
// edit, delete, or clear is observed there without waiting for the next
// sync pass.
// Best effort: a failure degrades to local-only and the reconciler retries.
func (s *Records) pushSets(ctx context.Context, userID string, sets ...string) {
	if s.Remote == nil || userID == "" {
		return
	}
	for _, set := range sets {
		value, err := s.Store.Get(ctx, store.ScopedKey(userID, set))
		if err != nil {
			continue
		}
		if err := s.Remote.Put(ctx, userID, set, value); err != nil {
			s.Logger.Warn("remote push failed, will retry on next sync",
				"set", set, "error", err)
		}
	}
}
