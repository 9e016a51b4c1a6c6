package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/config"
	"github.com/fares7elsadek/Readly/internal/infra/database"
	kafkainfra "github.com/fares7elsadek/Readly/internal/infra/kafka"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
	redisinfra "github.com/fares7elsadek/Readly/internal/infra/redis"
	"github.com/fares7elsadek/Readly/internal/infra/security"
	"github.com/fares7elsadek/Readly/internal/infra/telemetry"
	postgresrepo "github.com/fares7elsadek/Readly/internal/repository/postgres"
	redisrepo "github.com/fares7elsadek/Readly/internal/repository/redis"
	transportgrpc "github.com/fares7elsadek/Readly/internal/transport/grpc"
	grpcinterceptors "github.com/fares7elsadek/Readly/internal/transport/grpc/interceptors"
	"github.com/fares7elsadek/Readly/internal/transport/http/middleware"
	"github.com/fares7elsadek/Readly/internal/transport/http/routes"
	"github.com/fares7elsadek/Readly/internal/usecase"
)

const verificationTokenBytes = 32

// Application owns every long-lived resource of the Readly auth service.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	tracing    *telemetry.Tracing
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	dispatcher *usecase.MailDispatcher
	grpcServer *transportgrpc.Server
}

// New builds the application graph. Resources acquired before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Set(log)

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	if a.tracing, err = telemetry.SetupTracing(ctx, cfg.Telemetry, log); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log); err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err = postgresrepo.Migrate(ctx, a.pool); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	store := postgresrepo.NewStore(a.pool, log)

	var attempts port.RateLimitStore
	if cfg.Redis.Enabled {
		if a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log); err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		attempts = redisrepo.NewAttemptWindowRepository(a.redis.Client(), redisrepo.AttemptWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       2 * maxDuration(cfg.RateLimit.WindowDuration, cfg.App.LoginAttemptWindow, time.Minute),
		})
	} else {
		log.Warn("redis disabled, rate limiting and login throttling are off")
	}

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}

	var sender port.MailSender
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		a.producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, logging verification mails instead", zap.Error(err))
			sender = kafkainfra.NewStubMailSender(log)
		} else {
			sender = kafkainfra.NewMailPublisher(a.producer, cfg.App, log)
			log.Info("kafka mail publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, logging verification mails instead")
		sender = kafkainfra.NewStubMailSender(log)
	}
	a.dispatcher = usecase.NewMailDispatcher(sender, usecase.MailDispatcherConfig{
		BaseURL:        cfg.App.BaseURL,
		MaxAttempts:    cfg.Email.MaxRetryAttempts,
		Workers:        cfg.Email.Workers,
		QueueSize:      cfg.Email.QueueSize,
		InitialBackoff: cfg.Email.RetryBackoff,
		MaxBackoff:     cfg.Email.MaxRetryBackoff,
	}, authMetrics, log)

	signer, err := security.NewHMACSigner(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}
	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Password.Memory,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
		MinScore:  cfg.Password.MinScore,
	})

	authService, err := usecase.NewAuthService(usecase.AuthConfig{
		AccessTokenTTL:       cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL:      cfg.JWT.RefreshTokenTTL,
		VerificationTokenTTL: cfg.Email.VerificationTokenTTL,
	}, usecase.AuthDependencies{
		Identities:  store.Identities,
		UnitOfWork:  store,
		Lifecycle:   usecase.NewTokenLifecycle(store.Tokens, security.NewSecureTokenGenerator(verificationTokenBytes)),
		Credentials: usecase.NewCredentialVerifier(store.Identities, hasher),
		Hasher:      hasher,
		Policy:      policy,
		Signer:      signer,
		Verifier:    signer,
		Dispatcher:  a.dispatcher,
		Throttle: usecase.NewLoginThrottle(attempts, usecase.LoginThrottleConfig{
			MaxAttempts: cfg.App.MaxLoginAttempts,
			Window:      cfg.App.LoginAttemptWindow,
		}),
		Metrics: authMetrics,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	deps := routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Auth:     authService,
		Verifier: signer,
		Metrics:  httpMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Database: a.pool,
	}
	if attempts != nil {
		deps.RateLimiter = middleware.NewRateLimiter(attempts, log)
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
		if err != nil {
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		var tracing *grpcinterceptors.TracingOptions
		if a.tracing.Enabled() {
			tracing = &grpcinterceptors.TracingOptions{}
		}
		a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Verifier: signer,
			Accounts: authService,
			Metrics:  grpcMetrics,
			Tracing:  tracing,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("init grpc server: %w", err)
		}
	}

	return a, nil
}

// Run serves HTTP and gRPC until ctx is cancelled or a server fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       orDefault(a.cfg.HTTP.ReadTimeout, 30*time.Second),
		WriteTimeout:      orDefault(a.cfg.HTTP.WriteTimeout, 30*time.Second),
		IdleTimeout:       60 * time.Second,
	}

	var grpcListener net.Listener
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", a.cfg.GRPC.Host, a.cfg.GRPC.Port))
		if err != nil {
			a.release(context.Background())
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcListener = lis
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting Readly auth API",
			zap.String("env", a.cfg.App.Env),
			zap.String("address", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run http server: %w", err)
		}
		return nil
	})

	if grpcListener != nil {
		g.Go(func() error {
			if err := a.grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("run grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), orDefault(a.cfg.HTTP.ShutdownTimeout, 10*time.Second))
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}
		a.release(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// release closes resources in reverse dependency order. Nil members are skipped.
func (a *Application) release(ctx context.Context) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil && !errors.Is(err, usecase.ErrDispatcherClosed) {
			a.logger.Warn("mail dispatcher close", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown", zap.Error(err))
		}
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func maxDuration(values ...time.Duration) time.Duration {
	var out time.Duration
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}
