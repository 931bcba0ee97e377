package analytics

import (
	"github.com/cespare/xxhash/v2"

	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Score maps a sampling key onto [0, 100).
func Score(key string) float64 {
	return float64(xxhash.Sum64String(key)%10000) / 100
}

// Sample decides whether item survives sampling at percentage. Metrics are
// never sampled. Items sharing an operation, or failing that a session, get
// the same decision. Kept items record the rate they were sampled at.
func Sample(item *telemetry.Item, percentage float64) bool {
	if percentage >= 100 || item.BaseType == telemetry.MetricType {
		return true
	}

	key := item.Tag(telemetry.TagOperationID)
	if key == "" {
		key = item.Tag(telemetry.TagSessionID)
	}
	if key == "" {
		key = item.Tag(telemetry.TagUserID)
	}
	if key == "" {
		return true
	}

	if Score(key) >= percentage {
		return false
	}
	item.SampleRate = percentage
	return true
}
