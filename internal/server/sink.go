package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Sink receives accepted envelopes.
type Sink interface {
	Accept(envelopes []telemetry.Envelope)
}

// LogSink writes one log line per envelope.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.Named("envelopes")}
}

func (s *LogSink) Accept(envelopes []telemetry.Envelope) {
	for _, e := range envelopes {
		s.logger.Info("Envelope received",
			zap.String("name", e.Name),
			zap.String("ikey", e.IKey),
			zap.String("time", e.Time),
			zap.String("base_type", e.Data.BaseType),
			zap.Any("tags", e.Tags),
		)
	}
}

// MemorySink keeps the most recent envelopes.
type MemorySink struct {
	mu        sync.RWMutex
	envelopes []telemetry.Envelope
	limit     int
}

// NewMemorySink keeps at most limit envelopes; zero keeps everything.
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Accept(envelopes []telemetry.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes = append(s.envelopes, envelopes...)
	if s.limit > 0 && len(s.envelopes) > s.limit {
		s.envelopes = append([]telemetry.Envelope(nil), s.envelopes[len(s.envelopes)-s.limit:]...)
	}
}

// Envelopes returns a copy of the stored envelopes, oldest first.
func (s *MemorySink) Envelopes() []telemetry.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]telemetry.Envelope(nil), s.envelopes...)
}
