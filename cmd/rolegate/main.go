package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/rolegate/pkg/audit"
	"github.com/platinummonkey/rolegate/pkg/auth"
	"github.com/platinummonkey/rolegate/pkg/config"
	"github.com/platinummonkey/rolegate/pkg/httputil"
	"github.com/platinummonkey/rolegate/pkg/middleware"
	"github.com/platinummonkey/rolegate/pkg/observability"
	"github.com/platinummonkey/rolegate/pkg/rbac"
	"github.com/platinummonkey/rolegate/pkg/storage/database"
	"github.com/platinummonkey/rolegate/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("rolegate exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownTracing(flushCtx, tp); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.WithField("driver", cfg.Database.Driver).Info("Database connected")

	redisClient, err := database.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, cfg.Database.Driver),
	)
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var (
		auditLogger audit.Logger = audit.NoOpLogger()
		history     rbac.AuditHistory
		retention   *audit.RetentionJob
	)
	if cfg.Audit.Enabled {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		auditLogger = dbLogger
		history = dbLogger
		retention, err = audit.NewRetentionJob(dbLogger, cfg.Audit.Retention, cfg.Audit.CleanupSchedule, logger)
		if err != nil {
			return err
		}
	}

	directory := users.NewStore(db)
	manager := rbac.NewManager(db, cfg.Database.Driver, cfg.RBAC, rbac.ManagerDeps{
		Users:   directory,
		Audit:   auditLogger,
		History: history,
		Metrics: metrics,
		Logger:  logger,
	})
	if err := manager.Initialize(ctx); err != nil {
		return err
	}

	sessions := auth.NewSessionStore(redisClient, cfg.Redis.SessionPrefix)
	resolver := auth.NewResolver(sessions, directory, metrics)
	sessionMiddleware := middleware.NewSessionMiddleware(resolver)

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics))

	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(db, redisClient, cfg.Observability.ServiceVersion))
	observability.RegisterMetricsEndpoint(router, registry)

	rbacMiddleware := []mux.MiddlewareFunc{sessionMiddleware.Handler}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window,
		}, "")
		rbacMiddleware = append(rbacMiddleware, limiter.Handler)
	}
	manager.RegisterRoutes(router, rbacMiddleware...)

	handler := httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.MaxBytesMiddleware(1<<20),
	)(router)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(handler, cfg.Observability.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return closeResources(ctx, auditLogger, retention)
	})

	g, gctx := errgroup.WithContext(ctx)

	if retention != nil {
		retention.Start()
	}

	if path := os.Getenv("ROLEGATE_CONFIG_FILE"); path != "" {
		watcher, err := config.NewWatcher(path, logger, func(next *config.Config) {
			logger.SetLevel(observability.ParseLevel(next.Observability.LogLevel))
		})
		if err != nil {
			logger.WithError(err).Warn("Config file watching disabled")
		} else {
			g.Go(func() error {
				defer observability.RecoverPanic(logger, "config-watcher")
				return watcher.Run(gctx)
			})
		}
	}

	g.Go(func() error { return shutdown.Run(gctx) })

	return g.Wait()
}
