// Package observability provides logging, metrics, health checks and
// tracing for Gatehouse.
//
// # Logging
//
// Logger wraps slog with JSON output. Loggers are injected into components
// and scoped per request via the context helpers:
//
//	logger := observability.FromContext(r.Context())
//	logger.WithField("operation", "users.assign_role").Info("role changed")
//
// FromContext attaches the request id and authenticated user id for
// correlation.
//
// # Metrics
//
// NewMetrics registers all counters on a caller-owned Prometheus registry:
// HTTP request totals/durations, credential verification and login
// outcomes, users provisioned, sessions issued, per-operation authorization
// decisions, and tenant-scope denials.
//
// # Health
//
// HealthChecker serves liveness and readiness probes. The database is a
// hard dependency; Redis (login rate limiter) only degrades readiness.
//
// # Tracing
//
// InitOTel installs a global OTLP tracer provider when enabled; disabled
// by default.
package observability
