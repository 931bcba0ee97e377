package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/insights/internal/analytics"
	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/dependencies"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/host"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/properties"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Version is the SDK version stamped on every item.
const Version = "2.0.0"

// State is the controller's lifecycle position.
type State int32

const (
	Constructed State = iota
	PipelineInitialized
	StagesInitialized
	Draining
	Live
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case PipelineInitialized:
		return "pipeline-initialized"
	case StagesInitialized:
		return "stages-initialized"
	case Draining:
		return "draining"
	case Live:
		return "live"
	default:
		return "unknown"
	}
}

// ApplicationInsights is the full client: transport, enrichment and
// analytics stages behind a single facade.
type ApplicationInsights struct {
	snippet *Snippet
	config  *config.Resolved
	opts    *options
	logger  diagnostics.Logger
	metrics *monitoring.Metrics

	core       *pipeline.Core
	channel    pipeline.Channel
	properties *properties.Stage
	analytics  *analytics.Stage
	stages     []pipeline.Stage

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// New resolves the snippet's configuration and initializes the pipeline and
// its stages. A nil snippet is treated as empty. Queued calls are not run
// until EmptyQueue.
func New(snippet *Snippet, opts ...Option) (*ApplicationInsights, error) {
	if snippet == nil {
		snippet = NewSnippet(nil)
	}
	cfg := config.Resolve(snippet.Config)
	o := buildOptions(cfg, opts)

	a := &ApplicationInsights{
		snippet: snippet,
		config:  cfg,
		opts:    o,
		logger:  o.diagnostics,
		metrics: o.metrics,
	}
	if err := a.initialize(); err != nil {
		return nil, err
	}
	snippet.bind(a)
	return a, nil
}

// Load is the bootstrap flow: construct, drain the buffer and register the
// unload housekeeping.
func Load(snippet *Snippet, opts ...Option) (*ApplicationInsights, error) {
	a, err := New(snippet, opts...)
	if err != nil {
		return nil, err
	}
	a.EmptyQueue()
	a.AddHousekeepingBeforeUnload()
	return a, nil
}

func (a *ApplicationInsights) initialize() (err error) {
	a.core = pipeline.New(a.logger, pipeline.WithMetrics(a.metrics))
	a.channel = a.opts.newChannel()
	a.properties = properties.New(
		properties.WithStore(a.opts.store),
		properties.WithMetrics(a.metrics),
	)
	a.analytics = analytics.New(analytics.WithMetrics(a.metrics))
	a.stages = append([]pipeline.Stage{a.channel, a.properties, a.analytics}, a.opts.extensions...)

	if err := a.core.Initialize(a.config, a.stages, Version); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer func() {
		if err != nil {
			a.core.Close()
		}
	}()
	a.state.Store(int32(PipelineInitialized))

	for _, stage := range a.stages {
		if err := stage.Initialize(a.config, a.core, a.stages); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", stage.Identifier(), err)
		}
	}

	if r, ok := a.logger.(limitResetter); ok {
		a.analytics.OnPageView(func(telemetry.PageView) { r.ResetLimits() })
	}

	checkInstrumentationKey(a.logger, a.config.InstrumentationKey)
	a.state.Store(int32(StagesInitialized))
	return nil
}

// limitResetter is implemented by diagnostics loggers whose message caps
// apply per page view.
type limitResetter interface {
	ResetLimits()
}

// checkInstrumentationKey warns when the key is missing and reports one that
// is not a GUID. Neither stops initialization.
func checkInstrumentationKey(logger diagnostics.Logger, key string) {
	if key == "" {
		logger.WarnToConsole("No instrumentation key specified")
		return
	}
	if _, err := uuid.Parse(key); err != nil {
		logger.ThrowInternal(diagnostics.Warning, diagnostics.InvalidInstrumentationKey,
			"Instrumentation key is not a GUID", map[string]any{"iKey": key})
	}
}

// EmptyQueue runs every buffered call once, in order, then clears the
// buffer. A failing call does not stop the rest; all failures are reported
// together as one FailedToSendQueuedTelemetry message. Later calls are
// no-ops.
func (a *ApplicationInsights) EmptyQueue() {
	calls, ok := a.snippet.take()
	if !ok {
		return
	}
	a.state.Store(int32(Draining))
	defer a.state.Store(int32(Live))

	var failures []error
	for i, call := range calls {
		err := invoke(i, call)
		a.metrics.RecordQueuedCall(err != nil)
		if err != nil {
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		a.logger.ThrowInternal(diagnostics.Critical, diagnostics.FailedToSendQueuedTelemetry,
			"Failed to send queued telemetry", map[string]any{
				"exception": errors.Join(failures...).Error(),
				"failed":    len(failures),
				"queued":    len(calls),
			})
	}
}

// AddHousekeepingBeforeUnload registers the teardown flush. It is skipped
// when disabled in configuration or when the host cannot deliver the event.
func (a *ApplicationInsights) AddHousekeepingBeforeUnload() {
	if a.config.DisableFlushOnBeforeUnload {
		return
	}
	env := a.opts.host
	if env == nil || !env.IsEventSupported(host.BeforeUnload) {
		return
	}
	if !env.AddEventHandler(host.BeforeUnload, a.performHousekeeping) {
		a.logger.ThrowInternal(diagnostics.Critical, diagnostics.FailedToAddHandlerForOnBeforeUnload,
			"Failed to add handler for beforeunload", nil)
	}
}

// performHousekeeping flushes every channel without waiting and backs up the
// session.
func (a *ApplicationInsights) performHousekeeping() {
	for _, group := range a.core.TransmissionControls() {
		for _, ch := range group {
			ch.Flush(true)
		}
	}
	if sm := a.properties.SessionManager(); sm != nil {
		_ = sm.Backup()
	}
}

// State returns the lifecycle state.
func (a *ApplicationInsights) State() State {
	return State(a.state.Load())
}

// Config returns the resolved configuration.
func (a *ApplicationInsights) Config() *config.Resolved {
	return a.config
}

// Pipeline returns the pipeline core.
func (a *ApplicationInsights) Pipeline() *pipeline.Core {
	return a.core
}

// Properties returns the enrichment stage.
func (a *ApplicationInsights) Properties() *properties.Stage {
	return a.properties
}

// Metrics returns the client's metrics.
func (a *ApplicationInsights) Metrics() *monitoring.Metrics {
	return a.metrics
}

func (a *ApplicationInsights) TrackPageView(pv telemetry.PageView, custom map[string]any) {
	a.analytics.TrackPageView(pv, custom)
}

func (a *ApplicationInsights) TrackException(e telemetry.Exception, custom map[string]any) {
	a.analytics.TrackException(e, custom)
}

func (a *ApplicationInsights) TrackTrace(t telemetry.Trace, custom map[string]any) {
	a.analytics.TrackTrace(t, custom)
}

func (a *ApplicationInsights) TrackMetric(m telemetry.Metric, custom map[string]any) {
	a.analytics.TrackMetric(m, custom)
}

func (a *ApplicationInsights) TrackEvent(e telemetry.Event, custom map[string]any) {
	a.analytics.TrackEvent(e, custom)
}

func (a *ApplicationInsights) TrackDependency(d telemetry.Dependency, custom map[string]any) {
	a.analytics.TrackDependency(d, custom)
}

// Track sends a manually constructed item.
func (a *ApplicationInsights) Track(item *telemetry.Item) {
	a.core.Track(item)
}

// OnError tracks an auto-collected error unless exception tracking is off.
func (a *ApplicationInsights) OnError(e telemetry.AutoException) bool {
	return a.analytics.OnError(e)
}

// Flush flushes every channel.
func (a *ApplicationInsights) Flush(async bool) {
	for _, group := range a.core.TransmissionControls() {
		for _, ch := range group {
			ch.Flush(async)
		}
	}
}

// InstrumentTransport wraps base so outbound calls are tracked as
// dependencies. origin is the host considered same-origin for correlation
// headers. The per-view call budget resets on every page view.
func (a *ApplicationInsights) InstrumentTransport(base http.RoundTripper, origin string) http.RoundTripper {
	t := dependencies.NewTransport(base, a.config, a.analytics,
		dependencies.WithOrigin(origin),
		dependencies.WithOperation(func() string { return a.analytics.OperationID().String() }),
		dependencies.WithLogger(a.logger),
		dependencies.WithMetrics(a.metrics),
	)
	a.analytics.OnPageView(func(telemetry.PageView) { t.ResetView() })
	return t
}

type contextCloser interface {
	Close(ctx context.Context) error
}

// Close flushes synchronously, waits for in-flight sends and stops the
// pipeline's background work.
func (a *ApplicationInsights) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = closeChannels(ctx, a.core, a.logger)
		a.core.Close()
	})
	return a.closeErr
}

// closeChannels closes every channel, reporting each one that could not
// finish its final flush.
func closeChannels(ctx context.Context, core *pipeline.Core, logger diagnostics.Logger) error {
	var errs []error
	for _, group := range core.TransmissionControls() {
		for _, ch := range group {
			if c, ok := ch.(contextCloser); ok {
				if err := c.Close(ctx); err != nil {
					logger.ThrowInternal(diagnostics.Critical, diagnostics.FlushFailed,
						"Failed to flush telemetry on close", map[string]any{
							"channel":   ch.Identifier(),
							"exception": err.Error(),
						})
					errs = append(errs, fmt.Errorf("close %s: %w", ch.Identifier(), err))
				}
				continue
			}
			ch.Flush(false)
		}
	}
	return errors.Join(errs...)
}
