// Package telemetry defines telemetry items, their typed payloads, and the
// envelope batch format posted to the ingestion endpoint.
//
// Payload types (PageView, Exception, Trace, Metric, Event, Dependency)
// build pipeline Items. The transport stage converts items to Envelopes and
// ships them as a gzip-compressed JSON array; the collector decodes the same
// format.
package telemetry
