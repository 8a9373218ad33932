// Package app holds the process bootstrap shared by every binary: env and
// config loading, logger, database, optional Redis, signal handling and
// ordered shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/instance"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/migrate"
	"github.com/angelmondragon/khatabook-backend/pkg/redis"
)

// Runtime is what a binary gets after boot. Resources opened through it are
// closed by Close in reverse order.
type Runtime struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Boot loads .env and config, builds the logger, dials the database and
// applies dev migrations when enabled.
func Boot(ctx context.Context, name string, bootLog *logger.Logger) (*Runtime, error) {
	if err := godotenv.Load(); err != nil {
		bootLog.Debug(ctx, ".env not loaded; using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = name

	rt := &Runtime{
		Name:   name,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: name,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}

	rt.DB, err = db.New(ctx, cfg.DB, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rt.OnClose("database", rt.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, rt.DB); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return rt, nil
}

// Redis dials Redis and registers it for shutdown.
func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rt.OnClose("redis", client.Close)
	return client, nil
}

// OnClose registers fn to run at shutdown, after everything registered later.
func (rt *Runtime) OnClose(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers newest first and reports every failure.
func (rt *Runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errs
}

// Main boots the process, runs fn until SIGINT or SIGTERM and exits non-zero
// when boot or fn fails. Resources are released before the exit.
func Main(name string, fn func(ctx context.Context, rt *Runtime) error) {
	os.Exit(run(name, fn))
}

func run(name string, fn func(ctx context.Context, rt *Runtime) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog := logger.New(logger.Options{ServiceName: name})
	rt, err := Boot(ctx, name, bootLog)
	if err != nil {
		bootLog.Error(ctx, "boot failed", err)
		return 1
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error(context.Background(), "shutdown incomplete", err)
		}
	}()

	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"env":      rt.Config.App.Env,
		"instance": instance.ID(),
	})
	rt.Logger.Info(ctx, "process.start")
	if err := fn(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, "process.failed", err)
		return 1
	}
	rt.Logger.Info(ctx, "process.stop")
	return 0
}

// Serve runs srv until ctx ends, then drains in-flight requests for up to
// grace.
func Serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
