// Package channel implements the transport stage: an in-memory envelope
// buffer drained in gzip batches to the ingestion endpoint over resty, with
// retries, rate limiting and a circuit breaker.
package channel
