package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the telemetry client and the
// development collector. Each instance owns its registry so several clients
// can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Client pipeline
	ItemsTracked     *prometheus.CounterVec
	ItemsSampledOut  prometheus.Counter
	ItemsDropped     *prometheus.CounterVec
	QueuedCalls      *prometheus.CounterVec
	Flushes          *prometheus.CounterVec
	InternalMessages *prometheus.CounterVec
	SessionsStarted  prometheus.Counter
	Dependencies     *prometheus.CounterVec

	// Transmission
	BatchesSent   *prometheus.CounterVec
	BatchItems    prometheus.Histogram
	SendDuration  prometheus.Histogram
	BufferedItems prometheus.Gauge

	// Collector
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	EnvelopesReceived *prometheus.CounterVec
	LiveSubscribers   prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ItemsTracked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_items_tracked_total",
				Help: "Telemetry items handed to the pipeline",
			},
			[]string{"base_type"},
		),
		ItemsSampledOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_items_sampled_out_total",
				Help: "Telemetry items dropped by sampling",
			},
		),
		ItemsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_items_dropped_total",
				Help: "Telemetry items dropped before transmission",
			},
			[]string{"reason"},
		),
		QueuedCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_queued_calls_total",
				Help: "Buffered pre-load calls executed during drain",
			},
			[]string{"status"},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_flushes_total",
				Help: "Flush requests received by the transport stage",
			},
			[]string{"mode"},
		),
		InternalMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_internal_messages_total",
				Help: "Internal diagnostics reported",
			},
			[]string{"severity", "message_id"},
		),
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_sessions_started_total",
				Help: "Sessions started by the session manager",
			},
		),
		Dependencies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_dependencies_total",
				Help: "Outbound HTTP calls seen by dependency tracking",
			},
			[]string{"outcome"},
		),

		BatchesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_batches_sent_total",
				Help: "Batches posted to the ingestion endpoint",
			},
			[]string{"status"},
		),
		BatchItems: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insights_batch_items",
				Help:    "Envelopes per batch",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		SendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insights_send_duration_seconds",
				Help:    "Batch transmission duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		BufferedItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "insights_buffered_items",
				Help: "Envelopes waiting in the transport buffer",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		EnvelopesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_envelopes_received_total",
				Help: "Envelopes received by the ingestion endpoint",
			},
			[]string{"outcome"},
		),
		LiveSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_live_subscribers",
				Help: "Connected live-tail websocket clients",
			},
		),
	}
}

// RecordTracked counts an item entering the pipeline.
func (m *Metrics) RecordTracked(baseType string) {
	m.ItemsTracked.WithLabelValues(baseType).Inc()
}

// RecordDropped counts an item discarded before transmission.
func (m *Metrics) RecordDropped(reason string) {
	m.ItemsDropped.WithLabelValues(reason).Inc()
}

// RecordQueuedCall counts one drained call.
func (m *Metrics) RecordQueuedCall(failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	m.QueuedCalls.WithLabelValues(status).Inc()
}

// RecordFlush counts a flush request.
func (m *Metrics) RecordFlush(async bool) {
	mode := "sync"
	if async {
		mode = "async"
	}
	m.Flushes.WithLabelValues(mode).Inc()
}

// RecordInternalMessage counts a diagnostic report.
func (m *Metrics) RecordInternalMessage(severity, id string) {
	m.InternalMessages.WithLabelValues(severity, id).Inc()
}

// RecordDependency counts an outbound call.
func (m *Metrics) RecordDependency(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.Dependencies.WithLabelValues(outcome).Inc()
}

// RecordBatch records one transmission attempt.
func (m *Metrics) RecordBatch(status string, items int, duration time.Duration) {
	m.BatchesSent.WithLabelValues(status).Inc()
	m.BatchItems.Observe(float64(items))
	m.SendDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records a collector request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEnvelopes records envelopes handled by the collector.
func (m *Metrics) RecordEnvelopes(accepted, rejected int) {
	m.EnvelopesReceived.WithLabelValues("accepted").Add(float64(accepted))
	m.EnvelopesReceived.WithLabelValues("rejected").Add(float64(rejected))
}
