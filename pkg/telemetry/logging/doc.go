// Package logging configures structured logging for the gateway.
//
// Logs are written through log/slog. Setup builds a handler from
// configuration, wraps it so that request and worker identifiers stored in
// the context are added to every record, and redacts upstream credentials:
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, id)
//	slog.InfoContext(ctx, "request completed", "status", 200)
//
// Bearer tokens, Authorization header values and access_token query
// parameters never reach the output.
package logging
