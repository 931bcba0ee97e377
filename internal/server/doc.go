// Package server implements a development ingestion collector that accepts
// telemetry batches, logs them, streams them to websocket subscribers and
// exposes Prometheus metrics.
package server
