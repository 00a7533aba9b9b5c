package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/config"
	"github.com/vovakirdan/chatrelay/internal/core"
	"github.com/vovakirdan/chatrelay/internal/store"
	"github.com/vovakirdan/chatrelay/internal/store/badgerstore"
	"github.com/vovakirdan/chatrelay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatrelay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// OpenStore opens the message store selected by cfg.StoreDriver.
func OpenStore(cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite, "":
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
		return st, nil
	case config.StoreDriverBadger:
		st, err := badgerstore.New(cfg.BadgerDir, logger)
		if err != nil {
			return nil, fmt.Errorf("init badger store: %w", err)
		}
		logger.Info().Str("badger_dir", cfg.BadgerDir).Msg("database initialized")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := core.NewHub(st, logger, core.Options{
		HistoryLimit: cfg.HistoryLimit,
		StoreTimeout: cfg.StoreTimeout,
	})
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting chat relay")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
