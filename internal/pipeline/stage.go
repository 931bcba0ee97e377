package pipeline

import (
	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Stage is one unit registered with the pipeline.
type Stage interface {
	Identifier() string
	Initialize(cfg *config.Resolved, core Handle, stages []Stage) error
}

// Processor is a stage that sees every tracked item. Returning false drops
// the item.
type Processor interface {
	Stage
	ProcessTelemetry(item *telemetry.Item) bool
}

// Flusher can push buffered telemetry out immediately.
type Flusher interface {
	Flush(async bool)
}

// Channel is a transport stage: it receives items last and can be flushed.
type Channel interface {
	Processor
	Flusher
}

// Handle is what stages see of the pipeline.
type Handle interface {
	Track(item *telemetry.Item)
	Logger() diagnostics.Logger
	Version() string
	TransmissionControls() [][]Channel
}
