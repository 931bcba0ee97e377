package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Light is the minimal client: a pipeline with only the transport stage and
// a manual Track.
type Light struct {
	config *config.Resolved
	core   *pipeline.Core
	logger diagnostics.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewLight fails with ErrInvalidConfiguration, before building anything,
// when cfg or its instrumentation key is missing.
func NewLight(cfg *config.Configuration, opts ...Option) (*Light, error) {
	if cfg == nil || cfg.InstrumentationKey == "" {
		return nil, ErrInvalidConfiguration
	}

	resolved := config.Resolve(cfg)
	o := buildOptions(resolved, opts)

	core := pipeline.New(o.diagnostics, pipeline.WithMetrics(o.metrics))
	sender := o.newChannel()
	stages := []pipeline.Stage{sender}

	if err := core.Initialize(resolved, stages, Version); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if err := sender.Initialize(resolved, core, stages); err != nil {
		core.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", sender.Identifier(), err)
	}
	return &Light{config: resolved, core: core, logger: o.diagnostics}, nil
}

// Config returns the resolved configuration.
func (l *Light) Config() *config.Resolved {
	return l.config
}

// Track sends a manually constructed item.
func (l *Light) Track(item *telemetry.Item) {
	l.core.Track(item)
}

// Flush flushes the transport stage.
func (l *Light) Flush(async bool) {
	for _, group := range l.core.TransmissionControls() {
		for _, ch := range group {
			ch.Flush(async)
		}
	}
}

// Close flushes synchronously and waits for in-flight sends.
func (l *Light) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		l.closeErr = closeChannels(ctx, l.core, l.logger)
		l.core.Close()
	})
	return l.closeErr
}
