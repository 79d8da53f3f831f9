// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for rolegate.
//
// # Structured Logging
//
// Loggers are logrus loggers with a JSON formatter:
//
//	logger := observability.NewLogger("info", os.Stdout)
//	observability.FromContext(ctx).WithField("role", name).Info("Role created")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(router, prometheus.DefaultGatherer)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "rolegate",
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp)
package observability
