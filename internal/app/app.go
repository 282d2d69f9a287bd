package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/bus"
	"github.com/vovakirdan/coedit-server/internal/config"
	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/presence"
	"github.com/vovakirdan/coedit-server/internal/store"
	"github.com/vovakirdan/coedit-server/internal/store/memory"
	"github.com/vovakirdan/coedit-server/internal/store/postgres"
	"github.com/vovakirdan/coedit-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/coedit-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	mirror          *bus.RedisMirror
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store initialized")

	if err := ensureDefaultRoom(ctx, st, cfg.DefaultRoom, logger); err != nil {
		st.Close()
		return nil, err
	}

	opts := []core.Option{
		core.WithColorPicker(presence.NewColorPicker(presence.ColorMode(cfg.ColorMode))),
		core.WithPersistTimeout(cfg.PersistTimeout),
		core.WithPersistQueue(cfg.PersistQueue),
	}

	var mirror *bus.RedisMirror
	if cfg.Bus.RedisAddr != "" {
		mirror, err = bus.Dial(ctx, cfg.Bus.RedisAddr, cfg.Bus.ChannelPrefix, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init bus: %w", err)
		}
		opts = append(opts, core.WithMirror(mirror))
		logger.Info().Str("redis_addr", cfg.Bus.RedisAddr).Msg("cross-instance mirror enabled")
	}

	hub := core.NewHub(st, logger, opts...)
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		mirror:          mirror,
		log:             logger,
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.PostgresURL)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// ensureDefaultRoom creates the named room unless it already exists.
func ensureDefaultRoom(ctx context.Context, st store.Store, name string, logger *zerolog.Logger) error {
	if name == "" {
		return nil
	}
	room, err := st.GetRoomByName(ctx, name)
	if err == nil {
		logger.Debug().Int64("room_id", room.ID).Str("room_name", name).Msg("default room present")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup default room: %w", err)
	}

	room, err = st.CreateRoom(ctx, &store.Room{
		Name:     name,
		Code:     "// Welcome to the collaborative editor\n",
		IsPublic: true,
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("create default room: %w", err)
	}
	if room != nil {
		logger.Info().Int64("room_id", room.ID).Str("room_name", name).Msg("default room created")
	}
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		<-hubDone
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		stopHub()
		<-hubDone
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
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
