// Package config resolves telemetry client configuration.
//
// A Configuration is whatever the caller supplied: fields may be missing,
// boolean-like settings may arrive as strings, numbers may not parse. Resolve
// fills every gap with the documented default and returns a strict Resolved
// value that the pipeline and its stages read.
//
// Sources:
//   - Environment: Load reads INSIGHTS_* variables via envconfig
//     (INSIGHTS_INSTRUMENTATION_KEY, INSIGHTS_SAMPLING_PERCENTAGE, ...)
//   - YAML: LoadFile/Parse read camelCase keys (instrumentationKey,
//     samplingPercentage, ...)
//
// Example Usage:
//
//	partial, err := config.LoadFile("insights.yaml")
//	if err != nil {
//		return err
//	}
//	cfg := config.Resolve(partial)
package config
