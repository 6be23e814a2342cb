package app

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/migrate"
	"github.com/angelmondragon/banksampah-backend/pkg/redis"
)

// RuntimeOptions selects which shared resources a binary needs.
type RuntimeOptions struct {
	// Kind names the binary in logs and in cfg.Service.Kind.
	Kind string
	// SkipDB leaves Runtime.DB nil. Used by migrate commands that only touch files.
	SkipDB bool
	// SkipAutoMigrate disables the dev auto-migration hook.
	SkipAutoMigrate bool
	// WithRedis connects when BANKSAMPAH_REDIS_* is configured.
	WithRedis bool
}

// Runtime holds the resources every binary boots the same way.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	// Redis stays nil when redis is not configured.
	Redis *redis.Client

	closers []func() error
}

// Start loads .env and config, then opens the requested resources. On error
// anything already opened is closed.
func Start(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	boot := logger.New(logger.Options{ServiceName: opts.Kind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Kind != "" {
		cfg.Service.Kind = opts.Kind
	}

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: opts.Kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
	}
	if err := rt.open(ctx, opts); err != nil {
		return nil, multierr.Append(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, opts RuntimeOptions) error {
	if !opts.SkipDB {
		client, err := db.New(ctx, rt.Config.DB, rt.Logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		rt.DB = client
		rt.closers = append(rt.closers, client.Close)

		if !opts.SkipAutoMigrate {
			if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client); err != nil {
				return fmt.Errorf("dev migrations: %w", err)
			}
		}
	}

	if opts.WithRedis {
		if !rt.Config.Redis.Configured() {
			rt.Logger.Warn(ctx, "redis not configured")
			return nil
		}
		client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.Redis = client
		rt.closers = append(rt.closers, client.Close)
	}
	return nil
}

// OnClose registers fn to run during Close, before earlier resources.
func (rt *Runtime) OnClose(fn func() error) {
	if fn != nil {
		rt.closers = append(rt.closers, fn)
	}
}

// Close releases resources in reverse order of opening.
func (rt *Runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errs
}

// Context returns ctx carrying the env and service kind log fields.
func (rt *Runtime) Context(ctx context.Context) context.Context {
	return rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
	})
}
