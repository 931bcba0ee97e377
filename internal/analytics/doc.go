// Package analytics implements the public tracking stage: page views,
// exceptions, traces, metrics, events and dependencies, with operation
// context, page visit timing and score-based sampling.
package analytics
