package diagnostics

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/monitoring"
)

// MaxQueuedMessages caps how many internal messages one reporter queues for
// telemetry.
const MaxQueuedMessages = 25

// Logger is the diagnostics collaborator used by the controller, pipeline
// and stages. ThrowInternal reports; it never panics.
type Logger interface {
	WarnToConsole(message string)
	ThrowInternal(severity Severity, id MessageID, message string, properties map[string]any)
}

// Reporter routes internal diagnostics to zap and queues them for telemetry
// according to the configured logging levels.
type Reporter struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	consoleLevel   int
	telemetryLevel int
	debug          bool

	mu     sync.Mutex
	queue  []Message
	logged map[MessageID]bool
	count  int
}

// NewReporter creates a reporter for the resolved configuration. logger and
// metrics may be nil.
func NewReporter(cfg *config.Resolved, logger *logging.Logger, metrics *monitoring.Metrics) *Reporter {
	if cfg == nil {
		cfg = config.Resolve(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reporter{
		logger:         logger.Named("diagnostics"),
		metrics:        metrics,
		consoleLevel:   cfg.ConsoleLoggingLevel,
		telemetryLevel: cfg.TelemetryLoggingLevel,
		debug:          cfg.EnableDebug,
		logged:         make(map[MessageID]bool),
	}
}

// WarnToConsole writes a warning regardless of the configured levels.
func (r *Reporter) WarnToConsole(message string) {
	r.logger.Warn(message)
}

// ThrowInternal records an internal failure.
func (r *Reporter) ThrowInternal(severity Severity, id MessageID, message string, properties map[string]any) {
	msg := Message{Severity: severity, ID: id, Text: message, Properties: properties}

	if r.metrics != nil {
		r.metrics.RecordInternalMessage(severity.String(), id.String())
	}

	fields := []zap.Field{
		zap.String("message_id", id.String()),
		zap.Stringer("severity", severity),
	}
	if len(properties) > 0 {
		fields = append(fields, zap.Any("properties", properties))
	}

	switch {
	case r.debug:
		r.logger.Error(message, append(fields, zap.StackSkip("stack", 1))...)
	case r.consoleLevel >= int(severity):
		if severity == Critical {
			r.logger.Error(message, fields...)
		} else {
			r.logger.Warn(message, fields...)
		}
	}

	if r.telemetryLevel >= int(severity) {
		r.enqueue(msg)
	}
}

func (r *Reporter) enqueue(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.logged[msg.ID] || r.count > MaxQueuedMessages {
		return
	}
	r.logged[msg.ID] = true

	if r.count == MaxQueuedMessages {
		r.queue = append(r.queue, Message{
			Severity: Critical,
			ID:       MessageLimitPerPVExceeded,
			Text:     "Internal events throttle limit per PageView reached for this app.",
		})
	} else {
		r.queue = append(r.queue, msg)
	}
	r.count++
}

// DrainQueue returns the queued messages and empties the queue.
func (r *Reporter) DrainQueue() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.queue
	r.queue = nil
	return out
}

// ResetLimits clears de-duplication and the queue cap. The controller calls
// it at every page view.
func (r *Reporter) ResetLimits() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logged = make(map[MessageID]bool)
	r.count = 0
}

// Nop discards every diagnostic.
type Nop struct{}

func (Nop) WarnToConsole(string)                                   {}
func (Nop) ThrowInternal(Severity, MessageID, string, map[string]any) {}
