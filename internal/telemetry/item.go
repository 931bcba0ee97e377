package telemetry

import (
	"fmt"
	"time"
)

// Base types as they appear on the wire.
const (
	PageViewType   = "PageviewData"
	ExceptionType  = "ExceptionData"
	TraceType      = "MessageData"
	MetricType     = "MetricData"
	EventType      = "EventData"
	DependencyType = "RemoteDependencyData"
)

// Context tag keys.
const (
	TagSessionID     = "ai.session.id"
	TagSessionIsNew  = "ai.session.isFirst"
	TagUserID        = "ai.user.id"
	TagDeviceOS      = "ai.device.os"
	TagDeviceType    = "ai.device.type"
	TagOperationID   = "ai.operation.id"
	TagOperationName = "ai.operation.name"
	TagParentID      = "ai.operation.parentId"
	TagSDKVersion    = "ai.internal.sdkVersion"
)

// SeverityLevel grades traces and exceptions.
type SeverityLevel int

const (
	Verbose SeverityLevel = iota
	Information
	Warning
	Error
	Critical
)

// Item is one telemetry item travelling through the pipeline. Stages may add
// tags and properties; the transport stage turns it into an Envelope.
type Item struct {
	IKey       string
	Time       time.Time
	BaseType   string
	BaseData   map[string]any
	Tags       map[string]string
	SampleRate float64
}

// Tag returns a context tag or "".
func (i *Item) Tag(key string) string {
	if i.Tags == nil {
		return ""
	}
	return i.Tags[key]
}

// SetTag sets a context tag, allocating the map on first use.
func (i *Item) SetTag(key, value string) {
	if i.Tags == nil {
		i.Tags = make(map[string]string)
	}
	i.Tags[key] = value
}

// SetTagIfAbsent keeps an existing tag.
func (i *Item) SetTagIfAbsent(key, value string) {
	if i.Tag(key) == "" {
		i.SetTag(key, value)
	}
}

// Validate reports items the pipeline cannot send.
func (i *Item) Validate() error {
	if i == nil {
		return fmt.Errorf("telemetry item is nil")
	}
	if i.BaseType == "" {
		return fmt.Errorf("telemetry item has no base type")
	}
	return nil
}

func newItem(baseType string, data map[string]any) *Item {
	return &Item{
		Time:     time.Now().UTC(),
		BaseType: baseType,
		BaseData: data,
	}
}

func withCustom(data map[string]any, properties map[string]any, measurements map[string]float64) map[string]any {
	if len(properties) > 0 {
		data["properties"] = stringify(properties)
	}
	if len(measurements) > 0 {
		data["measurements"] = measurements
	}
	return data
}

// stringify renders custom properties as strings, which is what the
// ingestion schema accepts.
func stringify(properties map[string]any) map[string]string {
	out := make(map[string]string, len(properties))
	for k, v := range properties {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func merge(a, b map[string]any) map[string]any {
	if len(b) == 0 {
		return a
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
