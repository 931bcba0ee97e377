package telemetry

import (
	"fmt"
	"time"
)

// PageView records a viewed page or screen.
type PageView struct {
	Name         string
	URI          string
	ID           string
	Duration     time.Duration
	Properties   map[string]any
	Measurements map[string]float64
}

// Item builds the pipeline item; custom properties merge over the payload's.
func (p PageView) Item(custom map[string]any) *Item {
	data := map[string]any{
		"ver":  2,
		"name": p.Name,
		"url":  p.URI,
	}
	if p.ID != "" {
		data["id"] = p.ID
	}
	if p.Duration > 0 {
		data["duration"] = FormatDuration(p.Duration)
	}
	return newItem(PageViewType, withCustom(data, merge(p.Properties, custom), p.Measurements))
}

// Exception records a handled or reported error.
type Exception struct {
	Err           error
	SeverityLevel SeverityLevel
	Properties    map[string]any
	Measurements  map[string]float64
}

// Item builds the pipeline item.
func (e Exception) Item(custom map[string]any) *Item {
	message := "<nil>"
	typeName := "error"
	if e.Err != nil {
		message = e.Err.Error()
		typeName = fmt.Sprintf("%T", e.Err)
	}
	data := map[string]any{
		"ver":           2,
		"severityLevel": int(e.SeverityLevel),
		"exceptions": []map[string]any{{
			"typeName":     typeName,
			"message":      message,
			"hasFullStack": false,
		}},
	}
	return newItem(ExceptionType, withCustom(data, merge(e.Properties, custom), e.Measurements))
}

// AutoException is an error captured by auto-collection rather than reported
// explicitly, such as a recovered panic.
type AutoException struct {
	Message string
	URL     string
	Line    int
	Column  int
	Err     error
}

// Exception converts the captured error for tracking.
func (a AutoException) Exception() Exception {
	err := a.Err
	if err == nil {
		err = fmt.Errorf("%s", a.Message)
	}
	props := map[string]any{}
	if a.URL != "" {
		props["url"] = a.URL
	}
	if a.Line > 0 {
		props["lineNumber"] = a.Line
		props["columnNumber"] = a.Column
	}
	return Exception{Err: err, SeverityLevel: Error, Properties: props}
}

// Trace records a diagnostic message.
type Trace struct {
	Message       string
	SeverityLevel SeverityLevel
	Properties    map[string]any
}

// Item builds the pipeline item.
func (t Trace) Item(custom map[string]any) *Item {
	data := map[string]any{
		"ver":           2,
		"message":       t.Message,
		"severityLevel": int(t.SeverityLevel),
	}
	return newItem(TraceType, withCustom(data, merge(t.Properties, custom), nil))
}

// Metric records an aggregated or single measurement.
type Metric struct {
	Name        string
	Average     float64
	SampleCount int
	Min         float64
	Max         float64
	Properties  map[string]any
}

// Item builds the pipeline item.
func (m Metric) Item(custom map[string]any) *Item {
	count := m.SampleCount
	if count <= 0 {
		count = 1
	}
	point := map[string]any{
		"name":  m.Name,
		"kind":  0,
		"value": m.Average,
		"count": count,
	}
	if count > 1 {
		point["kind"] = 1
		point["min"] = m.Min
		point["max"] = m.Max
	}
	data := map[string]any{
		"ver":     2,
		"metrics": []map[string]any{point},
	}
	return newItem(MetricType, withCustom(data, merge(m.Properties, custom), nil))
}

// Event records a named custom event.
type Event struct {
	Name         string
	Properties   map[string]any
	Measurements map[string]float64
}

// Item builds the pipeline item.
func (e Event) Item(custom map[string]any) *Item {
	data := map[string]any{
		"ver":  2,
		"name": e.Name,
	}
	return newItem(EventType, withCustom(data, merge(e.Properties, custom), e.Measurements))
}

// Dependency records an outbound call.
type Dependency struct {
	ID         string
	Name       string
	Target     string
	Type       string
	Data       string
	ResultCode string
	Duration   time.Duration
	Success    bool
	Properties map[string]any
}

// Item builds the pipeline item.
func (d Dependency) Item(custom map[string]any) *Item {
	data := map[string]any{
		"ver":        2,
		"id":         d.ID,
		"name":       d.Name,
		"target":     d.Target,
		"type":       d.Type,
		"data":       d.Data,
		"resultCode": d.ResultCode,
		"duration":   FormatDuration(d.Duration),
		"success":    d.Success,
	}
	return newItem(DependencyType, withCustom(data, merge(d.Properties, custom), nil))
}

// FormatDuration renders d as the ingestion schema's "d.hh:mm:ss.fff" form.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	days := ms / 86400000
	ms %= 86400000
	hours := ms / 3600000
	ms %= 3600000
	minutes := ms / 60000
	ms %= 60000
	seconds := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%d.%02d:%02d:%02d.%03d", days, hours, minutes, seconds, ms)
}
