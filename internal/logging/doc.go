// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Output goes to stderr by default so an embedding application keeps stdout.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("collector listening", zap.String("addr", ":8000"))
//	logger.Warn("send failed", zap.Error(err))
package logging
