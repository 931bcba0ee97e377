// Package bootstrap loads the telemetry client: it buffers calls made before
// load, builds the ordered stage pipeline, drains the buffer exactly once and
// registers the teardown flush.
//
// The full client (ApplicationInsights) runs the transport, enrichment and
// analytics stages. Light runs only the transport stage and requires an
// instrumentation key up front.
package bootstrap
