package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/banksampah-backend/internal/app"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/outbox"
	"github.com/angelmondragon/banksampah-backend/pkg/pubsub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, app.RuntimeOptions{Kind: "outbox-publisher"})
	if err != nil {
		logger.New(logger.Options{ServiceName: "outbox-publisher"}).Error(ctx, "failed to start", err)
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
	ctx = logg.WithField(rt.Context(ctx), "topic", cfg.PubSub.LedgerTopic)

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		return 1
	}
	rt.OnClose(client.Close)

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         rt.DB,
		PubSub:     client,
		Repository: outbox.NewRepository(rt.DB.DB()),
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox publisher", err)
		return 1
	}

	logg.Info(ctx, "outbox.publisher.start")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "outbox.publisher.stop")
	return 0
}
