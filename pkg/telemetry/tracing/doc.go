// Package tracing provides OpenTelemetry tracing for the gateway.
//
// When disabled, New returns a tracer backed by the noop provider so call
// sites never need to check configuration. When enabled, spans are batched
// to an OTLP gRPC collector using a parent-based ratio sampler.
//
// Spans opened by the gateway:
//
//	proxy.request      one per inbound API request
//	proxy.forward      the upstream round trip
//	proxy.filter       the normalize, filter, denormalize pipeline
//	stream.session     one per streaming connection
//	topology.collect   a status collection round in the master
//
// Trace context is extracted from inbound requests and injected into
// upstream requests with the W3C traceparent headers.
package tracing
