// Package dependencies collects outbound HTTP calls as dependency telemetry
// and propagates correlation headers.
package dependencies
