// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a *zap.Logger and attach identifiers as fields
// (session_id, execution_id, component) rather than formatting them into
// messages. Degraded marker waits and proxy failures log at Warn; spawn
// failures log at Error.
//
// Example Usage:
//
//	logger, err := logging.FromSettings("info", false)
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//	logger.Component("http").Info("Server starting", zap.String("addr", addr))
package logging
