package middleware

import (
	"net/http"
	"time"

	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
)

// Tracker counts in-flight work.
type Tracker interface {
	Begin()
	End()
}

// ActivityMiddleware counts every request as in-flight work until its
// handler returns, including the lifetime of upgraded streaming sessions.
func ActivityMiddleware(tracker Tracker, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker.Begin()
			collector.HandlerStarted()
			defer func() {
				collector.HandlerFinished()
				tracker.End()
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// MetricsMiddleware records request counts and durations for the wrapped
// handler.
func MetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)
			if rw.hijacked {
				return
			}
			collector.RecordRequest(r.Method, rw.statusCode, time.Since(start))
		})
	}
}
