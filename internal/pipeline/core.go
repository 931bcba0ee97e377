package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

var (
	ErrNilConfig          = errors.New("pipeline: configuration is required")
	ErrNilStage           = errors.New("pipeline: stage is nil")
	ErrDuplicateStage     = errors.New("pipeline: duplicate stage identifier")
	ErrAlreadyInitialized = errors.New("pipeline: already initialized")
)

// Core owns stage registration and item dispatch.
type Core struct {
	logger  diagnostics.Logger
	metrics *monitoring.Metrics

	mu          sync.RWMutex
	cfg         *config.Resolved
	version     string
	stages      []Stage
	processors  []Processor
	channels    []Channel
	initialized bool

	stopPoll chan struct{}
	pollDone chan struct{}
	stopOnce sync.Once
}

// Option customizes a Core.
type Option func(*Core)

// WithMetrics records tracked and dropped items.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Core) {
		c.metrics = m
	}
}

// New creates an uninitialized pipeline. A nil logger discards diagnostics.
func New(logger diagnostics.Logger, opts ...Option) *Core {
	if logger == nil {
		logger = diagnostics.Nop{}
	}
	c := &Core{logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Initialize wires dispatch for stages, keeping their order. It does not call
// the stages' own Initialize.
func (c *Core) Initialize(cfg *config.Resolved, stages []Stage, version string) error {
	if cfg == nil {
		return ErrNilConfig
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return ErrAlreadyInitialized
	}

	seen := make(map[string]bool, len(stages))
	var (
		processors []Processor
		channels   []Channel
	)
	for i, s := range stages {
		if s == nil {
			return fmt.Errorf("%w at position %d", ErrNilStage, i)
		}
		id := s.Identifier()
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, id)
		}
		seen[id] = true

		switch v := s.(type) {
		case Channel:
			channels = append(channels, v)
		case Processor:
			processors = append(processors, v)
		}
	}

	c.cfg = cfg
	c.version = version
	c.stages = append([]Stage(nil), stages...)
	c.processors = processors
	c.channels = channels
	c.initialized = true

	if cfg.TelemetryLoggingLevel > 0 {
		if drainer, ok := c.logger.(queueDrainer); ok {
			c.stopPoll = make(chan struct{})
			c.pollDone = make(chan struct{})
			go c.pollInternalLogs(drainer, cfg.DiagnosticLogInterval)
		}
	}
	return nil
}

// IsInitialized reports whether Initialize succeeded.
func (c *Core) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Config returns the configuration given to Initialize.
func (c *Core) Config() *config.Resolved {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Stages returns the registered stages in registration order.
func (c *Core) Stages() []Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Stage(nil), c.stages...)
}

// Logger returns the diagnostics logger.
func (c *Core) Logger() diagnostics.Logger {
	return c.logger
}

// Version returns the SDK version passed to Initialize.
func (c *Core) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// TransmissionControls returns the channel stages, grouped. There is one
// group, in registration order.
func (c *Core) TransmissionControls() [][]Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.channels) == 0 {
		return nil
	}
	return [][]Channel{append([]Channel(nil), c.channels...)}
}

// Track stamps the item and dispatches it: processors run in registration
// order, then every channel receives the item.
func (c *Core) Track(item *telemetry.Item) {
	c.mu.RLock()
	initialized := c.initialized
	cfg := c.cfg
	processors := c.processors
	channels := c.channels
	c.mu.RUnlock()

	if !initialized {
		c.logger.ThrowInternal(diagnostics.Critical, diagnostics.PipelineNotInitialized,
			"Track called before the pipeline was initialized", nil)
		return
	}
	if err := item.Validate(); err != nil {
		c.logger.ThrowInternal(diagnostics.Warning, diagnostics.TelemetryProcessorFailed,
			"Invalid telemetry item", map[string]any{"exception": err.Error()})
		return
	}

	if item.IKey == "" {
		item.IKey = cfg.InstrumentationKey
	}
	if item.Time.IsZero() {
		item.Time = time.Now().UTC()
	}
	if c.metrics != nil {
		c.metrics.RecordTracked(item.BaseType)
	}

	for _, p := range processors {
		if !c.process(p, item) {
			if c.metrics != nil {
				c.metrics.RecordDropped(p.Identifier())
			}
			return
		}
	}
	for _, ch := range channels {
		c.process(ch, item)
	}
}

func (c *Core) process(p Processor, item *telemetry.Item) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			keep = false
			c.logger.ThrowInternal(diagnostics.Critical, diagnostics.TelemetryProcessorFailed,
				"Telemetry processor failed", map[string]any{
					"stage":     p.Identifier(),
					"exception": fmt.Sprint(r),
				})
		}
	}()
	return p.ProcessTelemetry(item)
}

// Close stops the internal-log poller.
func (c *Core) Close() {
	c.stopOnce.Do(func() {
		c.mu.RLock()
		stop, done := c.stopPoll, c.pollDone
		c.mu.RUnlock()
		if stop != nil {
			close(stop)
			<-done
		}
	})
}

type queueDrainer interface {
	DrainQueue() []diagnostics.Message
}

// pollInternalLogs periodically forwards queued internal diagnostics as
// trace telemetry.
func (c *Core) pollInternalLogs(drainer queueDrainer, interval time.Duration) {
	defer close(c.pollDone)
	if interval <= 0 {
		interval = config.DefaultDiagnosticLogInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPoll:
			return
		case <-ticker.C:
			for _, msg := range drainer.DrainQueue() {
				c.Track(telemetry.Trace{
					Message:       msg.String(),
					SeverityLevel: traceSeverity(msg.Severity),
					Properties:    msg.Properties,
				}.Item(nil))
			}
		}
	}
}

func traceSeverity(s diagnostics.Severity) telemetry.SeverityLevel {
	if s == diagnostics.Critical {
		return telemetry.Critical
	}
	return telemetry.Warning
}
