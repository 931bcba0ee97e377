package telemetry

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
)

// ContentType of an encoded batch.
const ContentType = "application/json"

// MaxDecodedBatch bounds a decompressed batch.
const MaxDecodedBatch = 32 << 20

// Marshal renders envelopes as a JSON array.
func Marshal(envelopes []Envelope) ([]byte, error) {
	if envelopes == nil {
		envelopes = []Envelope{}
	}
	data, err := sonic.Marshal(envelopes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return data, nil
}

// Encode renders envelopes as a gzip-compressed JSON array.
func Encode(envelopes []Envelope) ([]byte, error) {
	raw, err := Marshal(envelopes)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress batch: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a batch body; compressed selects gzip decoding.
func Decode(body []byte, compressed bool) ([]Envelope, error) {
	raw := body
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip batch: %w", err)
		}
		defer zr.Close()

		raw, err = io.ReadAll(io.LimitReader(zr, MaxDecodedBatch+1))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress batch: %w", err)
		}
		if len(raw) > MaxDecodedBatch {
			return nil, fmt.Errorf("batch exceeds %d bytes", MaxDecodedBatch)
		}
	}

	var envelopes []Envelope
	if err := sonic.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	return envelopes, nil
}

// Size estimates the encoded size of one envelope.
func Size(env Envelope) int {
	data, err := sonic.Marshal(env)
	if err != nil {
		return 0
	}
	return len(data)
}
