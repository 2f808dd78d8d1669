package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hourflow/hourflow/internal/sync/domain"
	httpapi "github.com/hourflow/hourflow/internal/sync/http"
	"github.com/hourflow/hourflow/internal/sync/identity"
	"github.com/hourflow/hourflow/internal/sync/license"
	"github.com/hourflow/hourflow/internal/sync/remote"
	"github.com/hourflow/hourflow/internal/sync/remote/docbin"
	"github.com/hourflow/hourflow/internal/sync/remote/userdb"
	"github.com/hourflow/hourflow/internal/sync/service"
	"github.com/hourflow/hourflow/internal/sync/store"
	"github.com/hourflow/hourflow/internal/sync/store/drivers/sqlite"
	"github.com/hourflow/hourflow/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the sync service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	remote   remote.Store
	identity identity.Provider
	locks    *store.KeyedLock

	records    *service.Records
	billing    *service.Billing
	reconciler *service.Reconciler
	migrator   *service.Migrator
	worker     *service.SyncWorker
	license    *license.Client

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "hourflow-sync",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRemote(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initIdentity()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.worker.Start()

	app.logger.Info("sync service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"remote", app.cfg.RemoteBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down sync service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.worker.Stop()

	if closer, ok := app.remote.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error("error closing remote connection", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("sync service stopped")
	return nil
}

// initDatabase opens the local record store and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRemote selects the remote document store driver. "none" leaves the
// remote nil and the app runs local-only.
func (app *Application) initRemote() error {
	switch app.cfg.RemoteBackend {
	case "", "none":
		app.logger.Info("no remote backend configured, running local-only")
		return nil

	case "docbin":
		if app.cfg.DocbinBaseURL == "" {
			return fmt.Errorf("HOURFLOW_DOCBIN_BASE_URL is required for the docbin backend")
		}
		app.remote = docbin.NewClient(app.cfg.DocbinBaseURL, app.cfg.DocbinKey)
		return nil

	case "userdb":
		if app.cfg.UserdbURL == "" {
			return fmt.Errorf("HOURFLOW_USERDB_URL is required for the userdb backend")
		}
		client, err := userdb.Connect(app.cfg.UserdbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to userdb: %w", err)
		}
		app.remote = client
		return nil

	default:
		return fmt.Errorf("unknown remote backend %q", app.cfg.RemoteBackend)
	}
}

func (app *Application) initIdentity() {
	switch {
	case app.cfg.UserID != "":
		app.identity = identity.Static{UserID: app.cfg.UserID}
	case app.cfg.IdentityToken != "":
		app.identity = identity.Token{
			Token:  app.cfg.IdentityToken,
			Secret: []byte(app.cfg.IdentitySecret),
		}
	default:
		app.identity = identity.None{}
	}
}

func (app *Application) initServices() {
	app.locks = store.NewKeyedLock()

	app.records = &service.Records{
		Store:  app.db,
		Remote: app.remote,
		Locks:  app.locks,
		Logger: app.logger,
	}
	app.billing = &service.Billing{
		Store:  app.db,
		Locks:  app.locks,
		Logger: app.logger,
	}
	app.reconciler = &service.Reconciler{
		Store:      app.db,
		Remote:     app.remote,
		Locks:      app.locks,
		Logger:     app.logger,
		MatchField: domain.MatchField,
	}
	app.migrator = &service.Migrator{
		Store:  app.db,
		Locks:  app.locks,
		Logger: app.logger,
	}
	app.worker = &service.SyncWorker{
		Identity:   app.identity,
		Migrator:   app.migrator,
		Reconciler: app.reconciler,
		Interval:   app.cfg.SyncInterval,
		Logger:     app.logger,
	}

	if app.cfg.LicenseURL != "" {
		app.license = license.NewClient(app.cfg.LicenseURL, app.db, app.logger)
	}
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(BuildVersion, app.db, app.logger)
	app.router.Identity = app.identity
	app.router.Records = app.records
	app.router.Billing = app.billing
	app.router.Reconciler = app.reconciler
	app.router.License = app.license
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
