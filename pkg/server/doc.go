// Package server runs the gateway HTTP server inside one worker.
//
// The router keeps request paths uncleaned so upstream URLs embedded after
// /proxy/ and /ws/ survive intact:
//
//	/proxy/<upstream-url>   REST calls, filtered through the plugin chain
//	/ws/<upstream-url>      streaming API bridge
//	/ping                   liveness
//	/ready                  readiness (status store reachability)
//	/status                 aggregated worker status, long-polled
//	/metrics                Prometheus metrics
//	/plugins                installed plugins and their assets
//	/plugins/<id>/...       plugin-provided endpoints
//
// Serve runs on a listener owned by the caller; the topology package binds it
// once and shares it between workers. Drain stops accepting and waits for
// in-flight work, including hijacked WebSocket connections, for a bounded
// grace period.
package server
