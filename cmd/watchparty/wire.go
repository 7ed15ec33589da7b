package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mmcdole/watchparty/internal/adapter"
	"github.com/mmcdole/watchparty/internal/auth"
	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/player"
	"github.com/mmcdole/watchparty/internal/remote/postgres"
	"github.com/mmcdole/watchparty/internal/remote/redisstore"
	"github.com/mmcdole/watchparty/internal/remote/rest"
	"github.com/mmcdole/watchparty/internal/store"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

type app struct {
	cfg      *adapter.Config
	logger   *slog.Logger
	store    *store.Store
	auth     *auth.Provider
	profiles domain.ProfileRepository // nil when the backend has no profiles
	engine   *watchstate.Engine
	launcher *player.Launcher

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func wireApp(ctx context.Context, cfg *adapter.Config) (*app, error) {
	logger, logCloser, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger, logCloser = adapter.NullLogger(), io.NopCloser(nil)
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	st, err := store.New(cfg.Storage.Dir)
	if err != nil {
		_ = a.closeAll()
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st)

	a.auth = auth.NewProvider(auth.Config{
		URL:     cfg.AuthURL(),
		AnonKey: cfg.AuthKey(),
	}, st, logger)

	remote, err := a.openRemote(ctx)
	if err != nil {
		// Local-first: the app keeps working without the account store.
		logger.Warn("remote store unavailable, running offline", "backend", cfg.Remote.Backend, "error", err)
		remote = nil
	}

	a.engine = watchstate.New(watchstate.Options{
		Local:         st,
		Remote:        remote,
		Debounce:      cfg.Sync.Debounce,
		HistoryLimit:  cfg.Sync.HistoryLimit,
		RemoteTimeout: cfg.Remote.Timeout,
		FlushOnClose:  cfg.Sync.FlushOnClose,
		Logger:        logger,
	})
	a.engine.Attach(ctx, a.auth)

	a.launcher = player.NewLauncher(cfg.Player.Command, logger)

	logger.Info("starting watchparty", "version", Version, "backend", cfg.Remote.Backend)
	return a, nil
}

// openRemote connects the configured account store. A nil store with a
// nil error means the backend is disabled or not configured.
func (a *app) openRemote(ctx context.Context) (domain.RemoteStore, error) {
	cfg := a.cfg
	if !cfg.IsConfigured() {
		if cfg.Remote.Backend != adapter.BackendNone {
			a.logger.Info("remote backend not configured", "backend", cfg.Remote.Backend)
		}
		return nil, nil
	}

	switch cfg.Remote.Backend {
	case adapter.BackendREST:
		client := rest.NewClient(cfg.Remote.URL, cfg.Remote.AnonKey, a.auth.AccessToken, a.logger)
		a.profiles = client
		return client, nil

	case adapter.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Remote.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closerFunc(func() error {
			pool.Close()
			return nil
		}))
		s := postgres.New(pool, a.logger)
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		a.profiles = s
		return s, nil

	case adapter.BackendRedis:
		client, err := redisstore.Dial(ctx, cfg.Remote.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return redisstore.New(client, a.logger), nil
	}
	return nil, nil
}

// Close flushes the engine and releases everything in reverse order
func (a *app) Close(ctx context.Context) error {
	if a.engine != nil {
		// Local state is already saved; a failed final push only delays the sync.
		if err := a.engine.Close(ctx); err != nil {
			a.logger.Warn("final sync failed, changes stay on this device", "error", err)
		}
	}
	a.logger.Info("shutting down")
	return a.closeAll()
}

func (a *app) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
