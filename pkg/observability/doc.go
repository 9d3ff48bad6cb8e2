/*
Package observability provides tools for monitoring the pageflow binder.

It turns conversation lifecycle events into Prometheus metrics (Metrics.Hooks),
structured log records (LogHooks) and OpenTelemetry span events (TraceHooks).
All are plain domain.LifecycleHooks and can be merged with each other or with
host supplied hooks.
*/
package observability
