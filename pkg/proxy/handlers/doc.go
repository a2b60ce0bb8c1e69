// Package handlers implements the gateway's HTTP endpoints.
//
// ProxyHandler relays REST calls to the Mastodon instance named in the
// request path and rewrites JSON responses through the plugin filter chain.
// WebSocketHandler does the same for streaming connections, one session per
// client. The remaining handlers serve operator endpoints: liveness, worker
// status and the installed plugin list.
//
// Upstream URLs travel in the path:
//
//	/proxy/https://mastodon.example/api/v1/timelines/home?limit=20
//	/ws/wss://mastodon.example/api/v1/streaming/?stream=user
package handlers
