// Package app wires the orchestrator's dependencies and runs its
// processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/TomKentIntera/project-voxel-sub001/migrations"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/database"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/health"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/httpclient"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/tracing"

	"github.com/TomKentIntera/project-voxel-sub001/internal/auth"
	"github.com/TomKentIntera/project-voxel-sub001/internal/aws"
	"github.com/TomKentIntera/project-voxel-sub001/internal/config"
	"github.com/TomKentIntera/project-voxel-sub001/internal/event"
	handler "github.com/TomKentIntera/project-voxel-sub001/internal/handler/http"
	"github.com/TomKentIntera/project-voxel-sub001/internal/repository/postgres"
	"github.com/TomKentIntera/project-voxel-sub001/internal/service"
)

// App holds the wired dependency graph.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client

	TokenService *auth.TokenService
	AuthService  *service.AuthService
	Provisioning *service.ProvisioningService
	Publisher    *event.Publisher
	Consumer     *event.Consumer
	TokenRepo    *postgres.AuthTokenRepository

	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// New initializes every dependency: database, migrations, Redis, the token
// stack, and the event bus clients. A missing signing secret fails here,
// not on the first request.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "voxel-orchestrator",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		// Redis only backs the rate limiter; start degraded without it.
		logger.Warn("redis unavailable, rate limiting disabled", slog.String("error", err.Error()))
		redisClient = nil
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret:  cfg.JWTSecret,
		AppKey:  cfg.AppKey,
		Testing: cfg.IsTesting(),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	tokenRepo := postgres.NewAuthTokenRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	serverRepo := postgres.NewServerRepository(pool)

	tokenService := auth.NewTokenService(codec, tokenRepo, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
	authService := service.NewAuthService(userRepo, tokenService, logger)
	provisioning := service.NewProvisioningService(serverRepo, logger)
	serverService := service.NewServerService(serverRepo, logger)

	// Bus calls go through a circuit breaker so a regional SNS/SQS outage
	// sheds load instead of stacking up timed-out requests.
	busClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{
			Timeout:         cfg.HTTPClientTimeout,
			MaxConnsPerHost: 100,
		}),
		httpclient.DefaultCircuitBreakerConfig("event-bus"),
		logger,
	)
	credentials := aws.Credentials{
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
		SessionToken:    cfg.AWSSessionToken,
	}

	publisher := event.NewPublisher(event.PublisherConfig{
		Region:      cfg.AWSRegion,
		Credentials: credentials,
		Endpoint:    cfg.SNSEndpoint,
		Topics:      cfg.Topics,
	}, busClient, logger)

	consumer := event.NewConsumer(event.ConsumerConfig{
		Region:      cfg.AWSRegion,
		Credentials: credentials,
		QueueURL:    cfg.ServerOrdersQueueURL,
	}, busClient, provisioning.HandleServerOrdered, logger)

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := handler.NewRouter(handler.RouterConfig{
		AuthService:    authService,
		ServerService:  serverService,
		TokenService:   tokenService,
		HealthHandler:  healthHandler,
		RedisClient:    redisClient,
		Logger:         logger,
		LoginRateLimit: 30,

		Environment:        cfg.Environment,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PprofEnabled:       cfg.PprofEnabled,
		PprofAllowedCIDRs:  cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		TokenService:   tokenService,
		AuthService:    authService,
		Provisioning:   provisioning,
		Publisher:      publisher,
		Consumer:       consumer,
		TokenRepo:      tokenRepo,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// RunHTTP starts the HTTP server and blocks until the context is canceled.
func (a *App) RunHTTP(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.Close()
	return nil
}

// Close releases held connections and flushes pending spans.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	a.pool.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application stopped")
}
