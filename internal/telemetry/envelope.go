package telemetry

import (
	"strings"
	"time"
)

// Envelope is the wire form of one item.
type Envelope struct {
	Name       string            `json:"name"`
	Time       string            `json:"time"`
	IKey       string            `json:"iKey"`
	SampleRate float64           `json:"sampleRate,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Data       Data              `json:"data"`
}

// Data wraps the typed payload.
type Data struct {
	BaseType string         `json:"baseType"`
	BaseData map[string]any `json:"baseData"`
}

// NewEnvelope converts a pipeline item.
func NewEnvelope(item *Item) Envelope {
	ts := item.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	env := Envelope{
		Name: EnvelopeName(item.IKey, item.BaseType),
		Time: ts.UTC().Format(time.RFC3339Nano),
		IKey: item.IKey,
		Data: Data{BaseType: item.BaseType, BaseData: item.BaseData},
	}
	if item.SampleRate > 0 && item.SampleRate < 100 {
		env.SampleRate = item.SampleRate
	}
	if len(item.Tags) > 0 {
		env.Tags = make(map[string]string, len(item.Tags))
		for k, v := range item.Tags {
			env.Tags[k] = v
		}
	}
	return env
}

// EnvelopeName builds "Microsoft.ApplicationInsights.<ikey>.<Type>", with the
// key's dashes removed and the "Data" suffix dropped.
func EnvelopeName(ikey, baseType string) string {
	kind := strings.TrimSuffix(baseType, "Data")
	key := strings.ReplaceAll(ikey, "-", "")
	if key == "" {
		return "Microsoft.ApplicationInsights." + kind
	}
	return "Microsoft.ApplicationInsights." + key + "." + kind
}
