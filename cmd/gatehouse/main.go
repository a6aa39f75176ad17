package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/gatehouse/pkg/api"
	"github.com/platinummonkey/gatehouse/pkg/config"
	"github.com/platinummonkey/gatehouse/pkg/guard"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/ratelimit"
	"github.com/platinummonkey/gatehouse/pkg/resolver"
	"github.com/platinummonkey/gatehouse/pkg/session"
	"github.com/platinummonkey/gatehouse/pkg/storage/postgres"
	"github.com/platinummonkey/gatehouse/pkg/tenant"
	"github.com/platinummonkey/gatehouse/pkg/verifier"
)

func main() {
	// Startup logging before the structured logger is configured.
	startup := logrus.New()
	startup.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		startup.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry tracing (optional)
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		startup.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		startup.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		startup.Fatalf("Failed to ping database: %v", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		startup.Fatalf("Failed to run migrations: %v", err)
	}
	store := postgres.NewStore(db)
	logger.Info("Database ready")

	// Redis (optional, enables distributed rate limiting)
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Redis is a soft dependency; the limiter falls back locally.
			logger.WithError(err).Warn("Redis unreachable at startup")
		} else {
			logger.Info("Redis ready")
		}
	}

	// Metrics
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		go trackDBPool(ctx, db, metrics)
	}

	// Identity provider verifier. Requires provider discovery, so network
	// access to the issuer is needed at startup.
	idpVerifier, err := verifier.New(ctx, verifier.Config{
		IssuerURL:    cfg.Provider.IssuerURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		RedirectURL:  cfg.Provider.RedirectURL,
		Scopes:       cfg.Provider.Scopes,
	})
	if err != nil {
		startup.Fatalf("Failed to initialize OIDC verifier: %v", err)
	}

	sessions, err := session.NewIssuer([]byte(cfg.Session.Secret), cfg.Session.IssuerName, cfg.Session.TTL)
	if err != nil {
		startup.Fatalf("Failed to initialize session issuer: %v", err)
	}

	// Login rate limiting: Redis-backed when available, in-process otherwise.
	limiterCfg := ratelimit.LoginConfig()
	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, limiterCfg, "gatehouse:login")
	} else {
		local := ratelimit.NewLocalLimiter(limiterCfg)
		local.StartCleanup(ctx)
		limiter = local
	}

	server := api.NewServer(api.Options{
		Store:    store,
		Verifier: idpVerifier,
		Resolver: resolver.New(store, logger, metrics),
		Sessions: sessions,
		Guard:    guard.New(sessions, store),
		Scoper:   tenant.New(metrics),
		Metrics:  metrics,
		Logger:   logger,
		Limiter:  ratelimit.NewMiddleware(limiter, limiterCfg, logger),
	})

	handler := otelhttp.NewHandler(server.Handler(), "gatehouse")
	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapers.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(otelProviders.Shutdown)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return shutdown.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		startup.Fatalf("Server exited: %v", err)
	}
	logger.Info("Shutdown complete")
}

// trackDBPool exports connection pool stats as gauges.
func trackDBPool(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		case <-ctx.Done():
			return
		}
	}
}
