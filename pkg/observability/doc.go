// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks, and graceful shutdown for the
// console. Metrics center on the authorization pipeline: sign-ins, role
// lookups, guard redirects, and permission denials.
package observability
