// Package metrics exposes Prometheus metrics for the gateway.
//
// A Collector owns its own registry so tests and multiple workers never
// share global state. All recording methods are safe on a nil or disabled
// Collector, which lets handlers record unconditionally.
//
// # Metrics
//
//   - naumanni_gateway_requests_total{method,code}
//   - naumanni_gateway_request_duration_seconds{method}
//   - naumanni_gateway_upstream_errors_total{kind}
//   - naumanni_gateway_filter_duration_seconds{entity}
//   - naumanni_gateway_filter_removed_total{entity}
//   - naumanni_gateway_websocket_sessions
//   - naumanni_gateway_websocket_messages_total{event}
//   - naumanni_gateway_active_handlers
//   - naumanni_gateway_status_collections_total{result}
//   - naumanni_gateway_workers
//
// The endpoint is mounted by the server at MetricsConfig.Path:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
