package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/TomKentIntera/project-voxel-sub001/internal/app"
	"github.com/TomKentIntera/project-voxel-sub001/internal/config"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("voxel-consumer", cfg.LogLevel)
	log.Info("starting server orders consumer",
		slog.String("environment", cfg.Environment),
		slog.String("queue_url", cfg.ServerOrdersQueueURL),
	)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run(ctx, application, cfg, log)
	log.Info("consumer stopped")
}

// run polls until the context is canceled. The long poll provides pacing on
// an idle queue; receive errors back off exponentially so a broken queue or
// expired credentials don't turn into a hot loop.
func run(ctx context.Context, application *app.App, cfg *config.Config, log *slog.Logger) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = time.Minute

	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := application.Consumer.ConsumeBatch(ctx, cfg.ConsumerBatchSize, cfg.ConsumerWaitSeconds)
		if err != nil {
			wait := retry.NextBackOff()
			log.Error("consume batch failed",
				slog.String("error", err.Error()),
				slog.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		retry.Reset()
		if processed > 0 {
			log.Info("batch processed", slog.Int("count", processed))
		}
	}
}
