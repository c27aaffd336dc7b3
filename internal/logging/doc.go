// Package logging provides structured, context-aware logging for
// paperwatch built on Zap.
//
// # Overview
//
// Logger wraps zap.Logger with methods that take a context.Context and
// automatically attach correlation fields: the run ID, the current
// pipeline stage, the paper being processed, and OpenTelemetry trace
// identifiers when a span is active.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	log, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    // handle error
//	}
//	defer log.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithLogger(ctx, log)
//	log.Info(ctx, "fetch stage complete", zap.Int("candidates", n))
//
// Packages deep in the pipeline retrieve the logger with
// logging.FromContext(ctx), which falls back to a nop logger so
// library code never needs nil checks.
//
// # Redaction
//
// The stdout encoder can redact configured field names and value
// patterns so LLM API keys never reach the logs. config.Secret values
// are redacted wherever they are marshaled.
package logging
