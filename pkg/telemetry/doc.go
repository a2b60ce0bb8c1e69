// Package telemetry groups the gateway's observability packages.
//
// # Components
//
//   - logging: slog setup with request, task and session fields and
//     credential redaction
//   - metrics: Prometheus collector on its own registry
//   - tracing: OpenTelemetry tracer, noop unless enabled
//   - health: readiness checks and the version endpoint
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//	slog.SetDefault(logger)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRequest(http.MethodGet, http.StatusOK, time.Since(start))
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(context.Background())
//	ctx, span := tracer.Start(ctx, "proxy.forward")
//	defer span.End()
//
// Access tokens never reach the logs: Authorization values and
// access_token query parameters are masked by the log handler.
package telemetry
