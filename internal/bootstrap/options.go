package bootstrap

import (
	"github.com/GriffinCanCode/insights/internal/channel"
	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/host"
	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/properties"
)

type options struct {
	host          host.Environment
	diagnostics   diagnostics.Logger
	logger        *logging.Logger
	metrics       *monitoring.Metrics
	channel       func() pipeline.Channel
	extensions    []pipeline.Stage
	store         properties.Store
	clientOptions *channel.ClientOptions
}

// Option customizes a controller.
type Option func(*options)

// WithHost sets the environment that delivers the teardown event. Without
// one, unload housekeeping is skipped.
func WithHost(env host.Environment) Option {
	return func(o *options) {
		o.host = env
	}
}

// WithDiagnostics replaces the diagnostics reporter.
func WithDiagnostics(l diagnostics.Logger) Option {
	return func(o *options) {
		o.diagnostics = l
	}
}

// WithLogger sets the zap logger the default reporter writes to.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics shares a metrics registry.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithChannel replaces the transport stage.
func WithChannel(factory func() pipeline.Channel) Option {
	return func(o *options) {
		o.channel = factory
	}
}

// WithExtensions appends stages after the built-in ones. Extensions that
// implement pipeline.Channel are flushed with the transport stage.
func WithExtensions(stages ...pipeline.Stage) Option {
	return func(o *options) {
		o.extensions = append(o.extensions, stages...)
	}
}

// WithSessionStore replaces the file store for session and user records.
func WithSessionStore(store properties.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithClientOptions tunes the default transport's HTTP client.
func WithClientOptions(opts channel.ClientOptions) Option {
	return func(o *options) {
		o.clientOptions = &opts
	}
}

func buildOptions(cfg *config.Resolved, opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = logging.NewDefault()
	}
	if o.metrics == nil {
		o.metrics = monitoring.NewMetrics()
	}
	if o.diagnostics == nil {
		o.diagnostics = diagnostics.NewReporter(cfg, o.logger, o.metrics)
	}
	return o
}

func (o *options) newChannel() pipeline.Channel {
	if o.channel != nil {
		return o.channel()
	}
	senderOpts := []channel.Option{channel.WithMetrics(o.metrics)}
	if o.clientOptions != nil {
		senderOpts = append(senderOpts, channel.WithClientOptions(*o.clientOptions))
	}
	return channel.NewSender(senderOpts...)
}
