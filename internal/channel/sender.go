package channel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/resilience"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Identifier is the sender's stage identifier.
const Identifier = "AppInsightsChannelPlugin"

// bufferFactor bounds the buffer at this many batches; older retries are
// dropped beyond it.
const bufferFactor = 10

// Sender is the transport stage. It buffers envelopes and posts them in
// batches when the buffer is full, when the batch interval elapses, or when
// flushed.
type Sender struct {
	cfg     *config.Resolved
	logger  diagnostics.Logger
	metrics *monitoring.Metrics
	client  *Client
	opts    ClientOptions

	mu     sync.Mutex
	buffer []pending
	size   int
	timer  *time.Timer
	closed bool

	// inflight counts background sends; idle is closed when it drops to zero.
	inflight int
	idle     chan struct{}
}

// pending is a buffered envelope with its encoded size.
type pending struct {
	env  telemetry.Envelope
	size int
}

// Option customizes a Sender.
type Option func(*Sender)

// WithClient replaces the ingestion client built during Initialize.
func WithClient(c *Client) Option {
	return func(s *Sender) {
		s.client = c
	}
}

// WithClientOptions tunes the client built during Initialize.
func WithClientOptions(opts ClientOptions) Option {
	return func(s *Sender) {
		s.opts = opts
	}
}

// WithMetrics records batches and buffered items.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Sender) {
		s.metrics = m
	}
}

// NewSender creates an uninitialized sender.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		logger: diagnostics.Nop{},
		opts:   DefaultClientOptions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Identifier implements pipeline.Stage.
func (s *Sender) Identifier() string {
	return Identifier
}

// Initialize implements pipeline.Stage.
func (s *Sender) Initialize(cfg *config.Resolved, core pipeline.Handle, _ []pipeline.Stage) error {
	if cfg == nil {
		return pipeline.ErrNilConfig
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	if core != nil && core.Logger() != nil {
		s.logger = core.Logger()
	}
	if s.client == nil {
		s.client = NewClient(cfg.EndpointURL, s.opts)
	}
	if core != nil && core.Version() != "" {
		s.client.SetHeader("X-Insights-SDK", "go:"+core.Version())
	}
	return nil
}

// ProcessTelemetry buffers the item. It always returns true: the sender is
// the last stage.
func (s *Sender) ProcessTelemetry(item *telemetry.Item) bool {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if cfg != nil && cfg.DisableTelemetry {
		if s.metrics != nil {
			s.metrics.RecordDropped("disabled")
		}
		return true
	}

	env := telemetry.NewEnvelope(item)
	size := telemetry.Size(env)

	s.mu.Lock()
	s.buffer = append(s.buffer, pending{env: env, size: size})
	s.size += size
	full := cfg != nil && s.size >= cfg.MaxBatchSizeInBytes
	var batch []pending
	if full {
		batch = s.takeLocked()
	} else {
		s.scheduleLocked()
	}
	s.observeLocked()
	s.mu.Unlock()

	if batch != nil {
		s.sendAsync(batch)
	}
	return true
}

// Flush sends everything buffered. With async the send runs in the
// background; Wait observes its completion.
func (s *Sender) Flush(async bool) {
	if s.metrics != nil {
		s.metrics.RecordFlush(async)
	}

	s.mu.Lock()
	batch := s.takeLocked()
	s.observeLocked()
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if async {
		s.sendAsync(batch)
		return
	}
	s.send(context.Background(), batch)
}

// Buffered returns the number of envelopes waiting to be sent.
func (s *Sender) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Wait blocks until in-flight sends finish or ctx ends. Sends started while
// waiting are waited for too.
func (s *Sender) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes synchronously, waits for in-flight sends and stops the
// batch timer. Items tracked afterwards stay buffered.
func (s *Sender) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.Flush(false)
	return s.Wait(ctx)
}

func (s *Sender) takeLocked() []pending {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	batch := s.buffer
	s.buffer = nil
	s.size = 0
	return batch
}

func (s *Sender) scheduleLocked() {
	if s.timer != nil || s.closed || s.cfg == nil || len(s.buffer) == 0 {
		return
	}
	s.timer = time.AfterFunc(s.cfg.MaxBatchInterval, func() {
		s.Flush(true)
	})
}

func (s *Sender) observeLocked() {
	if s.metrics != nil {
		s.metrics.BufferedItems.Set(float64(len(s.buffer)))
	}
}

func (s *Sender) sendAsync(batch []pending) {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	go func() {
		defer s.sendDone()
		s.send(context.Background(), batch)
	}()
}

func (s *Sender) sendDone() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	if s.inflight == 0 && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
}

func (s *Sender) send(ctx context.Context, batch []pending) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		s.requeue(batch)
		return
	}

	envelopes := make([]telemetry.Envelope, len(batch))
	for i, p := range batch {
		envelopes[i] = p.env
	}
	body, err := telemetry.Encode(envelopes)
	if err != nil {
		s.report(diagnostics.Critical, diagnostics.TransmissionFailed, "Failed to encode batch", err, len(batch))
		s.record("error", len(batch), 0)
		return
	}

	start := time.Now()
	result, err := client.Send(ctx, body)
	elapsed := time.Since(start)

	switch {
	case result == nil:
		s.requeue(batch)
		s.record("retry", len(batch), elapsed)
		severity := diagnostics.Warning
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			severity = diagnostics.Critical
		}
		s.report(severity, diagnostics.TransmissionFailed, "Failed to send telemetry", err, len(batch))

	case result.StatusCode == http.StatusOK:
		s.record("success", len(batch), elapsed)

	case result.StatusCode == http.StatusPartialContent:
		var retry []pending
		for _, e := range result.Response.Errors {
			if e.Index >= 0 && e.Index < len(batch) && telemetry.Retriable(e.StatusCode) {
				retry = append(retry, batch[e.Index])
			}
		}
		s.requeue(retry)
		s.record("partial", len(batch), elapsed)
		s.logger.ThrowInternal(diagnostics.Warning, diagnostics.PartialSuccess,
			"Partial success", map[string]any{
				"accepted": result.Response.ItemsAccepted,
				"received": result.Response.ItemsReceived,
				"retrying": len(retry),
			})

	case telemetry.Retriable(result.StatusCode):
		s.requeue(batch)
		s.record("retry", len(batch), elapsed)
		s.report(diagnostics.Warning, diagnostics.TransmissionFailed, "Ingestion endpoint is unavailable", err, len(batch))

	default:
		s.record("dropped", len(batch), elapsed)
		if s.metrics != nil {
			s.metrics.ItemsDropped.WithLabelValues("rejected").Add(float64(len(batch)))
		}
		s.logger.ThrowInternal(diagnostics.Critical, diagnostics.TransmissionFailed,
			"Ingestion endpoint rejected batch", map[string]any{
				"status": result.StatusCode,
				"items":  len(batch),
			})
	}
}

// requeue puts envelopes back at the front of the buffer, dropping the
// oldest when the buffer would exceed its bound.
func (s *Sender) requeue(retry []pending) {
	if len(retry) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]pending, 0, len(retry)+len(s.buffer))
	merged = append(merged, retry...)
	merged = append(merged, s.buffer...)

	limit := 0
	if s.cfg != nil {
		limit = s.cfg.MaxBatchSizeInBytes * bufferFactor
	}
	size := 0
	for _, p := range merged {
		size += p.size
	}
	for limit > 0 && size > limit && len(merged) > 0 {
		size -= merged[0].size
		merged = merged[1:]
		if s.metrics != nil {
			s.metrics.RecordDropped("buffer_full")
		}
	}

	s.buffer = merged
	s.size = size
	s.scheduleLocked()
	s.observeLocked()
}

func (s *Sender) record(status string, items int, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordBatch(status, items, elapsed)
	}
}

func (s *Sender) report(severity diagnostics.Severity, id diagnostics.MessageID, text string, err error, items int) {
	props := map[string]any{"items": items}
	if err != nil {
		props["exception"] = err.Error()
	}
	s.logger.ThrowInternal(severity, id, text, props)
}
