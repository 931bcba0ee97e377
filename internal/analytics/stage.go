package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/shared/id"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Identifier is the analytics stage's identifier.
const Identifier = "ApplicationInsightsAnalytics"

// PageVisitTimeMetric names the metric tracked for the previous page.
const PageVisitTimeMetric = "PageVisitTime"

// PageViewListener observes tracked page views.
type PageViewListener func(telemetry.PageView)

// Stage exposes the public tracking operations and samples items.
type Stage struct {
	now     func() time.Time
	ids     *id.Generator
	metrics *monitoring.Metrics

	mu        sync.RWMutex
	cfg       *config.Resolved
	core      pipeline.Handle
	logger    diagnostics.Logger
	operation id.OperationID
	pageName  string
	page      *visit
	listeners []PageViewListener
}

type visit struct {
	name  string
	uri   string
	start time.Time
}

// Option customizes a Stage.
type Option func(*Stage)

// WithClock overrides time.Now for page visit timing.
func WithClock(now func() time.Time) Option {
	return func(s *Stage) {
		s.now = now
	}
}

// WithIDGenerator overrides operation id generation.
func WithIDGenerator(g *id.Generator) Option {
	return func(s *Stage) {
		s.ids = g
	}
}

// WithMetrics counts sampled-out items.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Stage) {
		s.metrics = m
	}
}

// New creates an uninitialized stage.
func New(opts ...Option) *Stage {
	s := &Stage{
		now:    time.Now,
		ids:    id.Default(),
		logger: diagnostics.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Identifier implements pipeline.Stage.
func (s *Stage) Identifier() string {
	return Identifier
}

// Initialize implements pipeline.Stage.
func (s *Stage) Initialize(cfg *config.Resolved, core pipeline.Handle, _ []pipeline.Stage) error {
	if cfg == nil {
		return pipeline.ErrNilConfig
	}
	if core == nil {
		return fmt.Errorf("analytics: pipeline handle is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.core = core
	if l := core.Logger(); l != nil {
		s.logger = l
	}
	s.operation = s.ids.OperationID()
	return nil
}

// OnPageView registers a listener called after each tracked page view.
func (s *Stage) OnPageView(fn PageViewListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OperationID returns the operation id stamped on items of the current view.
func (s *Stage) OperationID() id.OperationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operation
}

// TrackPageView starts a new operation and tracks the view. With page visit
// timing enabled the previous page's visit time is tracked first.
func (s *Stage) TrackPageView(pv telemetry.PageView, custom map[string]any) {
	defer s.guard(diagnostics.TrackPVFailed, "trackPageView")

	now := s.now()

	s.mu.Lock()
	cfg := s.cfg
	previous := s.page
	s.page = &visit{name: pv.Name, uri: pv.URI, start: now}
	s.operation = s.ids.OperationID()
	s.pageName = pv.Name
	listeners := append([]PageViewListener(nil), s.listeners...)
	s.mu.Unlock()

	if cfg != nil && cfg.AutoTrackPageVisitTime && previous != nil {
		s.dispatch(telemetry.Metric{
			Name:        PageVisitTimeMetric,
			Average:     float64(now.Sub(previous.start).Milliseconds()),
			SampleCount: 1,
			Properties: map[string]any{
				"PageName": previous.name,
				"PageUrl":  previous.uri,
			},
		}.Item(nil))
	}

	s.dispatch(pv.Item(custom))

	for _, fn := range listeners {
		fn(pv)
	}
}

// TrackException tracks an explicitly reported error.
func (s *Stage) TrackException(e telemetry.Exception, custom map[string]any) {
	defer s.guard(diagnostics.TrackExceptionFailed, "trackException")
	s.dispatch(e.Item(custom))
}

// TrackTrace tracks a diagnostic message.
func (s *Stage) TrackTrace(t telemetry.Trace, custom map[string]any) {
	defer s.guard(diagnostics.TrackTraceFailed, "trackTrace")
	s.dispatch(t.Item(custom))
}

// TrackMetric tracks a measurement.
func (s *Stage) TrackMetric(m telemetry.Metric, custom map[string]any) {
	defer s.guard(diagnostics.TrackMetricFailed, "trackMetric")
	s.dispatch(m.Item(custom))
}

// TrackEvent tracks a custom event.
func (s *Stage) TrackEvent(e telemetry.Event, custom map[string]any) {
	defer s.guard(diagnostics.TrackEventFailed, "trackEvent")
	s.dispatch(e.Item(custom))
}

// TrackDependency tracks an outbound call.
func (s *Stage) TrackDependency(d telemetry.Dependency, custom map[string]any) {
	defer s.guard(diagnostics.TrackDependencyFailed, "trackDependency")
	s.dispatch(d.Item(custom))
}

// OnError tracks an auto-collected error unless exception tracking is
// disabled. It reports whether the error was tracked.
func (s *Stage) OnError(e telemetry.AutoException) bool {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	if cfg == nil || cfg.DisableExceptionTracking {
		return false
	}
	s.TrackException(e.Exception(), nil)
	return true
}

// ProcessTelemetry implements pipeline.Processor by sampling items.
func (s *Stage) ProcessTelemetry(item *telemetry.Item) bool {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	if cfg == nil {
		return true
	}
	keep := Sample(item, cfg.SamplingPercentage)
	if !keep && s.metrics != nil {
		s.metrics.ItemsSampledOut.Inc()
	}
	return keep
}

func (s *Stage) dispatch(item *telemetry.Item) {
	s.mu.RLock()
	core, operation, pageName := s.core, s.operation, s.pageName
	s.mu.RUnlock()

	if core == nil {
		s.logger.ThrowInternal(diagnostics.Critical, diagnostics.PipelineNotInitialized,
			"Analytics stage used before initialization", nil)
		return
	}
	if operation != "" {
		item.SetTagIfAbsent(telemetry.TagOperationID, operation.String())
	}
	if pageName != "" {
		item.SetTagIfAbsent(telemetry.TagOperationName, pageName)
	}
	core.Track(item)
}

func (s *Stage) guard(msgID diagnostics.MessageID, op string) {
	if r := recover(); r != nil {
		s.logger.ThrowInternal(diagnostics.Critical, msgID,
			op+" failed, telemetry will not be collected", map[string]any{"exception": fmt.Sprint(r)})
	}
}
