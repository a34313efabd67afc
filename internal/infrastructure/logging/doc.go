// Package logging builds the zap loggers used across pagelens.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Components receive a *zap.Logger named after themselves:
//
//	logger := logging.NewDefault()
//	sessions := logger.Component("session")
//	sessions.Info("capture started", zap.String("session", id))
package logging
