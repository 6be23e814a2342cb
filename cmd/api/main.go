package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/banksampah-backend/api/routes"
	"github.com/angelmondragon/banksampah-backend/internal/app"
	"github.com/angelmondragon/banksampah-backend/internal/auth"
	"github.com/angelmondragon/banksampah-backend/internal/residents"
	"github.com/angelmondragon/banksampah-backend/internal/seed"
	"github.com/angelmondragon/banksampah-backend/pkg/auth/session"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, app.RuntimeOptions{Kind: "api", WithRedis: true})
	if err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(ctx, "failed to start", err)
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
	cfg, logg, dbClient, redisClient := rt.Config, rt.Logger, rt.DB, rt.Redis
	if redisClient == nil {
		logg.Warn(ctx, "idempotency replay, sessions and login throttling disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := app.Build(ctx, app.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: registry,
	})
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		return 1
	}

	if cfg.FeatureFlags.SeedOnStart {
		if _, err := seed.Run(ctx, seed.Params{
			Categories: services.Categories,
			Residents:  services.Residents,
			Config:     cfg.Seed,
			Logger:     logg,
		}); err != nil {
			logg.Error(ctx, "failed to seed", err)
			return 1
		}
	}

	authParams := auth.ServiceParams{
		Actors:    residents.NewRepository(dbClient.DB()),
		Audit:     services.Audit,
		JWTConfig: cfg.JWT,
	}
	deps := routes.Dependencies{
		DB:           dbClient,
		Redis:        redisClient,
		Gatherer:     registry,
		Ledger:       services.Ledger,
		Categories:   services.Categories,
		Residents:    services.Residents,
		Transactions: services.Transactions,
		Movements:    services.Movements,
		Earnings:     services.Earnings,
		Audit:        services.Audit,
		Reports:      services.Reports,
	}
	if redisClient != nil {
		sessionManager, err := session.NewManager(redisClient, cfg.JWT)
		if err != nil {
			logg.Error(ctx, "failed to create session manager", err)
			return 1
		}
		authParams.Sessions = sessionManager
		deps.Sessions = sessionManager
	}
	if deps.Auth, err = auth.NewService(authParams); err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		return 1
	}

	addr := ":" + cfg.App.Port
	serverCtx := logg.WithField(rt.Context(ctx), "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(serverCtx, "api.server.start")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(serverCtx, "api server stopped unexpectedly", err)
		return 1
	}
	logg.Info(serverCtx, "api.server.stop")
	return 0
}
