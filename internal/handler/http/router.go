package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/TomKentIntera/project-voxel-sub001/pkg/health"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/middleware"

	"github.com/TomKentIntera/project-voxel-sub001/internal/auth"
	"github.com/TomKentIntera/project-voxel-sub001/internal/service"
)

// RouterConfig carries the router's collaborators.
type RouterConfig struct {
	AuthService   *service.AuthService
	ServerService *service.ServerService
	TokenService  *auth.TokenService
	HealthHandler *health.Handler
	RedisClient   *redis.Client
	Logger        *slog.Logger

	// LoginRateLimit caps login attempts per client IP per minute. Zero
	// disables the limiter (tests, no Redis).
	LoginRateLimit int

	// Environment and CORSAllowedOrigins feed the CORS middleware; wildcard
	// origins are only honored in development.
	Environment        string
	CORSAllowedOrigins []string

	// PprofEnabled mounts /debug/pprof behind the CIDR allowlist.
	PprofEnabled      bool
	PprofAllowedCIDRs []string
}

// NewRouter builds the chi router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Tracing("orchestrator"))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("orchestrator"))

	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	serverHandler := NewServerHandler(cfg.ServerService, cfg.Logger)

	resolver := func(token string) (int64, bool) {
		return cfg.TokenService.UserIDFromAccessToken(token)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			if cfg.RedisClient != nil && cfg.LoginRateLimit > 0 {
				r.Use(middleware.RateLimit(cfg.RedisClient, cfg.LoginRateLimit, time.Minute, cfg.Logger))
			}
			r.Post("/login", authHandler.Login)
		})

		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(resolver))
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Get("/me", authHandler.Me)
		})
	})

	r.Route("/api/v1/servers", func(r chi.Router) {
		r.Use(middleware.Auth(resolver))
		r.Get("/", serverHandler.List)
	})

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)
	}

	return r
}

// ContentTypeJSON rejects mutating requests that do not declare a JSON
// body.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
