/*
Package monitoring provides Prometheus metrics for the telemetry client and
the development collector.

# Overview

Every Metrics value owns a private registry, so embedding several clients (or
a client and a collector) in one process never trips duplicate registration.

# Client metrics

- Items tracked per base type, sampled out, dropped
- Drained pre-load calls (ok / failed)
- Flush requests (sync / async)
- Internal diagnostics per severity and message kind
- Batches sent, items per batch, send latency, buffered envelopes

# Collector metrics

- HTTP requests and latency
- Envelopes accepted and rejected
- Live-tail subscribers

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", metrics.Handler())
*/
package monitoring
