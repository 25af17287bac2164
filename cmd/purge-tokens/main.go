// Command purge-tokens deletes refresh token records whose expiry is past
// the retention window. Intended to run as a cron job.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/TomKentIntera/project-voxel-sub001/internal/config"
	"github.com/TomKentIntera/project-voxel-sub001/internal/repository/postgres"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/database"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("voxel-purge-tokens", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	cutoff := time.Now().Add(-cfg.PurgeRetention)
	deleted, err := postgres.NewAuthTokenRepository(pool).PurgeExpiredBefore(ctx, cutoff)
	if err != nil {
		log.Error("token purge failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("token purge complete",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
}
