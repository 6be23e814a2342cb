package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/banksampah-backend/internal/app"
	"github.com/angelmondragon/banksampah-backend/internal/cron"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/db"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
	"github.com/angelmondragon/banksampah-backend/pkg/outbox"
	"github.com/angelmondragon/banksampah-backend/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, app.RuntimeOptions{Kind: "cron-worker", WithRedis: true})
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(ctx, "failed to start", err)
		os.Exit(1)
	}
	if code := run(ctx, rt); code != 0 {
		_ = rt.Close()
		os.Exit(code)
	}
	if err := rt.Close(); err != nil {
		rt.Logger.Error(ctx, "error releasing resources", err)
	}
}

func run(ctx context.Context, rt *app.Runtime) int {
	cfg, logg := rt.Config, rt.Logger
	ctx = rt.Context(ctx)

	var lock cron.Lock = &cron.LocalLock{}
	if rt.Redis != nil {
		redisLock, err := cron.NewRedisLock(rt.Redis, lockKey(rt.Redis, cfg.App.Env), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			return 1
		}
		lock = redisLock
	} else {
		logg.Warn(ctx, "cron lock is process local")
	}

	services, err := app.Build(ctx, app.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         rt.DB,
		Redis:      rt.Redis,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		return 1
	}

	registry, err := buildRegistry(cfg, logg, rt.DB, services)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		return 1
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:       logg,
		Registry:     registry,
		Lock:         lock,
		Metrics:      metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:     cfg.Cron.Interval,
		// Cycles never outlive the lock, local or shared.
		CycleTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		return 1
	}

	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "cron.worker.start")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "cron.worker.stop")
	return 0
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey("cron-worker", env)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *app.Services) (*cron.Registry, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Cron.OutboxRetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:   logg,
		Ledger:   services.Ledger,
		PageSize: cfg.Cron.ReconcilePageSize,
	})
	if err != nil {
		return nil, err
	}
	consistency, err := cron.NewEarningsConsistencyJob(cron.EarningsConsistencyJobParams{
		Logger:   logg,
		Earnings: services.Earnings,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(retention, reconcile, consistency)
}
