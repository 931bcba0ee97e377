// Package properties implements the enrichment stage: session and user
// identity with persistence, plus device and SDK context tags.
package properties
