// Package middleware provides the HTTP middleware chain wrapped around every
// gateway route.
//
// The server assembles the chain outermost first:
//
//	Recovery -> RequestID -> Tracing -> Logging -> Activity -> CORS -> router
//
// RequestID stores the id where the logging package's handler picks it up,
// so every log line written during a request carries request_id. The
// response writer wrapper used for logging keeps http.Hijacker and
// http.Flusher available so streaming upgrades pass through the chain.
package middleware
