package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/config"
	"github.com/fares7elsadek/Readly/internal/transport/http/handlers"
	"github.com/fares7elsadek/Readly/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Auth        handlers.AuthService
	Verifier    port.TokenVerifier
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Telemetry.TracingEnabled {
		r.Use(otelgin.Middleware(serviceName(cfg)))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	}
	if deps.Verifier != nil {
		r.Use(middleware.Authenticate(deps.Verifier, middleware.AuthOptions{
			ExemptPrefixes: cfg.HTTP.ExemptPrefixes,
			Logger:         deps.Logger,
		}))
	}

	checks := make(map[string]handlers.ReadinessCheck, 2)
	if deps.Database != nil {
		checks["postgres"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	health := handlers.NewHealthHandler(checks)
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Ready)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlers.RegisterSwagger(r)

	if deps.Auth != nil {
		api := r.Group("/api/v1")

		authHandler := handlers.NewAuthHandler(deps.Auth, handlers.WithLoginWindow(cfg.App.LoginAttemptWindow))
		authHandler.RegisterRoutes(api.Group("/auth"), buildAuthMiddleware(deps))

		account := handlers.NewAccountHandler(deps.Auth)
		accountGroup := api.Group("/account", middleware.RequireAuthenticated())
		accountGroup.GET("/me", middleware.RequireAuthority(domain.RoleUser), account.Me)
	}

	return r
}

func serviceName(cfg *config.AppConfig) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	return cfg.App.Name
}

// buildAuthMiddleware puts per client IP limits in front of the unauthenticated auth endpoints.
func buildAuthMiddleware(deps Dependencies) handlers.AuthRouteMiddleware {
	var mw handlers.AuthRouteMiddleware
	if deps.RateLimiter == nil {
		return mw
	}

	limits := deps.Config.RateLimit
	window := limits.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	ipRule := func(name string, limit int) []gin.HandlerFunc {
		if limit <= 0 {
			return nil
		}
		return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
			Name:       name,
			Limit:      limit,
			Window:     window,
			Identifier: middleware.ClientIPIdentifier(),
		})}
	}

	mw.Register = ipRule("auth_register_ip", limits.RegisterMaxAttempts)
	mw.Login = ipRule("auth_login_ip", limits.LoginMaxAttempts)
	mw.Refresh = ipRule("auth_refresh_ip", limits.RefreshMaxAttempts)
	mw.Resend = ipRule("auth_resend_ip", limits.ResendMaxAttempts)
	return mw
}
