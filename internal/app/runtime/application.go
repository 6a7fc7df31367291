// Package runtime assembles the registrar server: configuration,
// persistence, application services and the HTTP listener.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/namedock/registrar/internal/app"
	"github.com/namedock/registrar/internal/app/httpapi"
	"github.com/namedock/registrar/internal/app/metrics"
	"github.com/namedock/registrar/internal/app/storage/postgres"
	"github.com/namedock/registrar/internal/config"
	"github.com/namedock/registrar/pkg/logger"
)

// Application wires core dependencies and manages the server lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sql.DB
}

// NewApplication constructs a fully wired server from the environment.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Name:   "registrar",
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(cfg, stores, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	var root http.Handler = httpapi.NewHandler(application)
	root = httpapi.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, log).Handler(root)
	root = metrics.InstrumentHandler(root)

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           root,
			ReadHeaderTimeout: 5 * time.Second,
		},
		db: db,
	}, nil
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.cfg.Server.Addr())
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, background services and the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// buildStores opens Postgres when a DSN is configured, otherwise leaves the
// stores nil so the application falls back to memory.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_DSN not set; using in-memory stores")
		return app.Stores{}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ensure schema: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Licenses:  store,
		Receipts:  store,
		Snapshots: store,
	}, db, nil
}
