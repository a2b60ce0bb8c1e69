package middleware

import (
	"net/http"

	"github.com/naumanni/naumanni-server/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request, continuing any trace
// context sent by the client.
func TracingMiddleware(tracer *tracing.Tracer, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tracing.Extract(r.Context(), r.Header)
			ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))
			tracing.SetHTTPAttributes(span, r.Method, rw.statusCode)
		})
	}
}
