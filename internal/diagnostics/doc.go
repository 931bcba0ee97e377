// Package diagnostics reports internal failures of the telemetry client.
//
// Nothing here unwinds the caller: ThrowInternal records the failure, writes
// it to the console when the console logging level admits its severity, and
// queues it for telemetry when the telemetry logging level does. Queued
// messages are de-duplicated per message kind and capped per reporter.
package diagnostics
