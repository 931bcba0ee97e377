package diagnostics

import "fmt"

// Severity of an internal diagnostic. Lower is more severe.
type Severity int

const (
	Critical Severity = 1
	Warning  Severity = 2
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case Warning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MessageID is a stable identifier for a kind of internal failure.
type MessageID int

const (
	FailedToSendQueuedTelemetry MessageID = iota + 1
	FailedToAddHandlerForOnBeforeUnload
	TrackPVFailed
	TrackTraceFailed
	TrackMetricFailed
	TrackEventFailed
	TrackExceptionFailed
	TrackDependencyFailed
	TelemetryProcessorFailed
	PipelineNotInitialized
	TransmissionFailed
	PartialSuccess
	FlushFailed
	SessionStorageFailed
	FailedToRestoreSession
	FailedToBackupSession
	MaxAjaxPerPVExceeded
	MessageLimitPerPVExceeded
	InvalidInstrumentationKey
)

var messageNames = map[MessageID]string{
	FailedToSendQueuedTelemetry:         "FailedToSendQueuedTelemetry",
	FailedToAddHandlerForOnBeforeUnload: "FailedToAddHandlerForOnBeforeUnload",
	TrackPVFailed:                       "TrackPVFailed",
	TrackTraceFailed:                    "TrackTraceFailed",
	TrackMetricFailed:                   "TrackMetricFailed",
	TrackEventFailed:                    "TrackEventFailed",
	TrackExceptionFailed:                "TrackExceptionFailed",
	TrackDependencyFailed:               "TrackDependencyFailed",
	TelemetryProcessorFailed:            "TelemetryProcessorFailed",
	PipelineNotInitialized:              "PipelineNotInitialized",
	TransmissionFailed:                  "TransmissionFailed",
	PartialSuccess:                      "PartialSuccess",
	FlushFailed:                         "FlushFailed",
	SessionStorageFailed:                "SessionStorageFailed",
	FailedToRestoreSession:              "FailedToRestoreSession",
	FailedToBackupSession:               "FailedToBackupSession",
	MaxAjaxPerPVExceeded:                "MaxAjaxPerPVExceeded",
	MessageLimitPerPVExceeded:           "MessageLimitPerPVExceeded",
	InvalidInstrumentationKey:           "InvalidInstrumentationKey",
}

// String returns the stable name of the message kind.
func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return fmt.Sprintf("MessageID(%d)", int(id))
}

// Message is one internal diagnostic, as queued for telemetry.
type Message struct {
	Severity   Severity
	ID         MessageID
	Text       string
	Properties map[string]any
}

// String renders the message the way it is sent as a trace.
func (m Message) String() string {
	return fmt.Sprintf("AI (Internal): %s message:%q", m.ID, m.Text)
}
