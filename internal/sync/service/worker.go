package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hourflow/hourflow/internal/sync/domain"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/remote"
)

// SyncWorker runs the migration step and periodic reconcile passes in the
// background. The legacy-key migration runs at most once per identity; sync
// passes repeat on the configured interval until Stop.
type SyncWorker struct {
	Identity   identity.Provider
	Migrator   *Migrator
	Reconciler *Reconciler
	Interval   time.Duration
	Logger     *slog.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	migrated map[string]bool
}

// Start launches the background loop. One pass runs immediately, then one
// per interval.
func (w *SyncWorker) Start() {
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.migrated = make(map[string]bool)

	go w.run()
}

// Stop signals the loop to exit and waits for the in-flight pass to finish.
func (w *SyncWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *SyncWorker) run() {
	defer close(w.doneCh)

	w.Logger.Info("sync worker started", "interval", w.Interval)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.pass()
	for {
		select {
		case <-w.stopCh:
			w.Logger.Info("sync worker stopped")
			return
		case <-ticker.C:
			w.pass()
		}
	}
}

// pass resolves the current identity, runs the one-time migration for it if
// needed, then a reconcile pass. An absent identity or remote backend is a
// normal idle state, not an error.
func (w *SyncWorker) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), w.Interval)
	defer cancel()

	userID, err := w.Identity.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, identity.ErrNoIdentity) {
			w.Logger.Warn("identity resolution failed", "error", err)
		}
		return
	}

	sets := domain.AllSets()

	if !w.migrated[userID] {
		if _, err := w.Migrator.MigrateOnce(ctx, userID, sets); err != nil {
			w.Logger.Warn("legacy migration failed", "error", err)
			return
		}
		w.migrated[userID] = true
	}

	if _, err := w.Reconciler.Sync(ctx, userID, sets); err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			return
		}
		w.Logger.Warn("sync pass failed", "error", err)
	}
}
