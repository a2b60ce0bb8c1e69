package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on gateway spans.
const (
	AttrUpstreamHost   = attribute.Key("naumanni.upstream.host")
	AttrAPIPath        = attribute.Key("naumanni.api.path")
	AttrFiltered       = attribute.Key("naumanni.filtered")
	AttrStreamEvent    = attribute.Key("naumanni.stream.event")
	AttrTaskID         = attribute.Key("naumanni.task_id")
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
)

// SetUpstreamAttributes records where a request was forwarded.
func SetUpstreamAttributes(span trace.Span, host, apiPath string) {
	span.SetAttributes(AttrUpstreamHost.String(host), AttrAPIPath.String(apiPath))
}

// SetHTTPAttributes records the method and final status of a request.
func SetHTTPAttributes(span trace.Span, method string, status int) {
	span.SetAttributes(AttrHTTPMethod.String(method), AttrHTTPStatusCode.Int(status))
}
