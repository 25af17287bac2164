// Package config loads the orchestrator's configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/TomKentIntera/project-voxel-sub001/pkg/config"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/database"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// CORSAllowedOrigins lists panel origins allowed to call the API. "*"
	// is only honored outside production-like environments.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Debug profiling endpoints, gated by an IP allowlist.
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.0/8"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"voxel"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"voxel_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"voxel_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (rate limiting)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Tokens. JWTSecret wins over AppKey; with neither set, startup fails
	// unless ENVIRONMENT is "testing".
	JWTSecret       string        `env:"JWT_SECRET" envDefault:""`
	AppKey          string        `env:"APP_KEY" envDefault:""`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"168h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// Event bus
	AWSRegion       string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID  string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	AWSSecretKey    string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	AWSSessionToken string `env:"AWS_SESSION_TOKEN" envDefault:""`

	// SNSEndpoint overrides the regional endpoint (localstack). Topics maps
	// event type to topic ARN, e.g.
	// "server.ordered.v1=arn:aws:sns:...:server-orders".
	SNSEndpoint string            `env:"SNS_ENDPOINT" envDefault:""`
	Topics      map[string]string `env:"EVENT_BUS_TOPICS" envDefault:"" envSeparator:"," envKeyValSeparator:"="`

	// ServerOrdersQueueURL is the SQS queue the consumer polls. Empty
	// disables consumption.
	ServerOrdersQueueURL string `env:"SERVER_ORDERS_QUEUE_URL" envDefault:""`

	// Outbound HTTP
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s"`

	// Consumer loop
	ConsumerBatchSize   int `env:"CONSUMER_BATCH_SIZE" envDefault:"10"`
	ConsumerWaitSeconds int `env:"CONSUMER_WAIT_SECONDS" envDefault:"20"`

	// Token purge
	PurgeRetention time.Duration `env:"TOKEN_PURGE_RETENTION" envDefault:"2160h"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load orchestrator config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.ConsumerBatchSize < 1 {
		return fmt.Errorf("invalid consumer batch size: %d", c.ConsumerBatchSize)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.Environment == "production" {
		secret := c.JWTSecret
		if secret == "" {
			secret = c.AppKey
		}
		if len(secret) < 32 {
			return fmt.Errorf("JWT_SECRET or APP_KEY must be at least 32 characters in production")
		}
	}
	return nil
}

// IsTesting reports whether the testing environment is active, which
// permits the fixed signing secret.
func (c *Config) IsTesting() bool {
	return c.Environment == "testing"
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
