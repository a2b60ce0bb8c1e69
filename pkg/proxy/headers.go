package proxy

import "net/http"

// RequestIDHeader carries the gateway request id back to the client.
const RequestIDHeader = "X-Request-ID"

// RequestHeaders are the only client headers forwarded upstream.
var RequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Authorization",
	"Content-Type",
	"Idempotency-Key",
	"Referer",
	"User-Agent",
}

// ResponseHeaders are the only upstream headers relayed to the client.
var ResponseHeaders = []string{
	"Content-Security-Policy",
	"Content-Type",
	"Date",
	"Link",
	"Location",
	"Referrer-Policy",
	"Strict-Transport-Security",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"X-XSS-Protection",
}

// CopyHeaders copies the allowed headers from src into dst.
func CopyHeaders(dst, src http.Header, allowed []string) {
	for _, name := range allowed {
		values := src.Values(name)
		if len(values) == 0 {
			continue
		}
		dst[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
}
