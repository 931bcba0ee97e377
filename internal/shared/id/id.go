// Package id generates the identifiers carried by telemetry.
//
// Operation (trace) ids and span ids are derived from ULIDs, so they sort by
// creation time and render as lowercase hex in W3C traceparent headers:
//   - OperationID: 32 hex characters (the 16 ULID bytes)
//   - SpanID: 16 hex characters (the 8 random bytes of a fresh ULID)
//
// Generation is safe for concurrent use.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// OperationID identifies one logical operation (a page view and everything it
// causes).
type OperationID string

// SpanID identifies one outbound call within an operation.
type SpanID string

func (id OperationID) String() string { return string(id) }
func (id SpanID) String() string      { return string(id) }

// Generator produces ULID-backed identifiers.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader, now: time.Now}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// OperationID returns a new 32-hex-character operation id.
func (g *Generator) OperationID() OperationID {
	u := g.Generate()
	return OperationID(hex.EncodeToString(u[:]))
}

// SpanID returns a new 16-hex-character span id.
func (g *Generator) SpanID() SpanID {
	u := g.Generate()
	return SpanID(hex.EncodeToString(u[8:]))
}

// NewOperationID uses the default generator.
func NewOperationID() OperationID {
	return Default().OperationID()
}

// NewSpanID uses the default generator.
func NewSpanID() SpanID {
	return Default().SpanID()
}

// IsOperationID reports whether s looks like an operation id.
func IsOperationID(s string) bool {
	return len(s) == 32 && isHex(s)
}

// IsSpanID reports whether s looks like a span id.
func IsSpanID(s string) bool {
	return len(s) == 16 && isHex(s)
}

// Timestamp extracts the creation time of an operation id.
func Timestamp(op OperationID) (time.Time, error) {
	raw, err := hex.DecodeString(string(op))
	if err != nil {
		return time.Time{}, err
	}
	var u ulid.ULID
	if err := u.UnmarshalBinary(raw); err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
