// Package logging builds the process logger.
//
// Logs are written as JSON (or console text) to stderr so that stdout
// stays free for command output and the MCP stdio transport. An optional
// second core forwards entries to an OpenTelemetry log provider.
//
// Field names listed in the redaction config, and string values matching
// the redaction patterns, are replaced before encoding:
//
//	logger.Info("embedding provider ready", zap.String("api_key", key))
//	// {"msg":"embedding provider ready","api_key":"[REDACTED]"}
//
// ContextFields adds trace correlation and the query id carried by a
// context:
//
//	ctx = logging.WithQueryID(ctx, id)
//	logger.With(logging.ContextFields(ctx)...).Info("query answered")
package logging
