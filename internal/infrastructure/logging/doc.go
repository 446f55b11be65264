// Package logging provides structured logging using uber/zap.
//
// Two encoders are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Loggers are always injected. Components accept a *Logger through a
// constructor argument or a WithLogger option and fall back to NewNop, so
// nothing in the module configures process-global logging state.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	hubLog := logger.Named("topic")
//	hubLog.Debug("Topic created", zap.String("topic", name))
package logging
