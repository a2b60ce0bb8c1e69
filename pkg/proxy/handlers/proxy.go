package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/normalizr"
	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
	"github.com/naumanni/naumanni-server/pkg/telemetry/tracing"
)

// Path prefixes the gateway handlers are mounted under.
const (
	ProxyPrefix     = "/proxy/"
	WebSocketPrefix = "/ws/"
)

// maxErrorDrain bounds how much of an upstream error body is read before the
// connection is released.
const maxErrorDrain = 64 << 10

var allowedMethods = []string{
	http.MethodGet,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// ProxyHandler forwards REST calls to the upstream instance named in the
// path and filters JSON responses through the plugin chain.
type ProxyHandler struct {
	client   *http.Client
	pipeline *proxy.Pipeline
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
}

// NewProxyHandler creates a proxy handler. collector and tracer may be nil.
func NewProxyHandler(client *http.Client, pipeline *proxy.Pipeline, collector *metrics.Collector, tracer *tracing.Tracer) *ProxyHandler {
	return &ProxyHandler{
		client:   client,
		pipeline: pipeline,
		metrics:  collector,
		tracer:   tracer,
	}
}

// ServeHTTP implements http.Handler.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, err := h.prepare(r)
	if err != nil {
		slog.DebugContext(ctx, "rejected proxy request", "method", r.Method, "error", err)
		h.writeError(ctx, w, err)
		return
	}

	resp, err := h.forward(ctx, r, target)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client went away before upstream responded", "upstream_host", target.Host)
			return
		}
		transportErr := proxy.NewTransportError(target.Host, err)
		h.metrics.RecordUpstreamError(transportErr.Kind())
		slog.WarnContext(ctx, "upstream request failed",
			"upstream_host", target.Host,
			"tls", transportErr.TLS,
			"error", err,
		)
		h.writeError(ctx, w, transportErr)
		return
	}
	defer resp.Body.Close()

	h.respond(ctx, w, target, resp)
}

// prepare validates the request and decodes the upstream target. Nothing
// has been sent upstream when it fails.
func (h *ProxyHandler) prepare(r *http.Request) (*url.URL, error) {
	if !slices.Contains(allowedMethods, r.Method) {
		return nil, fmt.Errorf("%w: %s", proxy.ErrMethodNotAllowed, r.Method)
	}

	target, err := proxy.DecodeTarget(strings.TrimPrefix(r.URL.EscapedPath(), ProxyPrefix), r.URL.RawQuery)
	if err != nil {
		return nil, err
	}

	if r.Method != http.MethodGet && r.ContentLength < 0 {
		return nil, proxy.ErrUploadLengthRequired
	}

	if r.Header.Get("Authorization") == "" && !isAppRegistration(r.Method, target) {
		return nil, proxy.ErrAuthorizationRequired
	}
	return target, nil
}

// isAppRegistration reports whether the request creates an OAuth app, the
// only call Mastodon accepts without a token.
func isAppRegistration(method string, target *url.URL) bool {
	if method != http.MethodPost {
		return false
	}
	_, apiPath, ok := apischema.ExtractAPIPath(target.String())
	return ok && apiPath == "/apps"
}

func (h *ProxyHandler) forward(ctx context.Context, r *http.Request, target *url.URL) (*http.Response, error) {
	ctx, span := h.tracer.Start(ctx, "proxy.forward", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	_, apiPath, _ := apischema.ExtractAPIPath(target.String())
	tracing.SetUpstreamAttributes(span, target.Host, apiPath)

	var body io.Reader = http.NoBody
	if r.ContentLength > 0 {
		body = io.LimitReader(r.Body, r.ContentLength)
	}
	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if r.ContentLength > 0 {
		out.ContentLength = r.ContentLength
	}
	proxy.CopyHeaders(out.Header, r.Header, proxy.RequestHeaders)

	resp, err := h.client.Do(out)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	tracing.SetHTTPAttributes(span, r.Method, resp.StatusCode)
	return resp, nil
}

func (h *ProxyHandler) respond(ctx context.Context, w http.ResponseWriter, target *url.URL, resp *http.Response) {
	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorDrain))
		h.metrics.RecordUpstreamError("http")
		slog.WarnContext(ctx, "upstream returned error status",
			"upstream_host", target.Host,
			"status", resp.StatusCode,
		)
		h.writeError(ctx, w, &proxy.UpstreamHTTPError{Host: target.Host, StatusCode: resp.StatusCode})
		return
	}

	proxy.CopyHeaders(w.Header(), resp.Header, proxy.ResponseHeaders)

	if isFilterable(resp) {
		h.respondFiltered(ctx, w, target, resp)
		return
	}

	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.DebugContext(ctx, "response copy interrupted", "upstream_host", target.Host, "error", err)
	}
}

func (h *ProxyHandler) respondFiltered(ctx context.Context, w http.ResponseWriter, target *url.URL, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client went away while reading upstream body", "upstream_host", target.Host)
			return
		}
		transportErr := proxy.NewTransportError(target.Host, err)
		h.metrics.RecordUpstreamError(transportErr.Kind())
		slog.WarnContext(ctx, "failed to read upstream body", "upstream_host", target.Host, "error", err)
		h.writeError(ctx, w, transportErr)
		return
	}

	filtered, err := h.pipeline.FilterResponse(ctx, target.String(), body)
	if err != nil {
		logFilterError(ctx, target, err)
		filtered = body
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(filtered)))
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(filtered); err != nil {
		slog.DebugContext(ctx, "response write interrupted", "upstream_host", target.Host, "error", err)
	}
}

// logFilterError logs a filter failure at a level matching its cause. The
// response is relayed unmodified in every case.
func logFilterError(ctx context.Context, target *url.URL, err error) {
	var mismatch *normalizr.SchemaMismatchError
	switch {
	case errors.Is(err, apischema.ErrRouteNotFound):
		slog.DebugContext(ctx, "no schema for response", "url", target.Path)
	case errors.As(err, &mismatch), errors.Is(err, proxy.ErrDecode):
		slog.WarnContext(ctx, "response does not match schema", "url", target.Path, "error", err)
	default:
		slog.ErrorContext(ctx, "response filter failed", "url", target.Path, "error", err)
	}
}

// isFilterable reports whether resp carries a JSON document the pipeline
// should rewrite.
func isFilterable(resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (h *ProxyHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, proxy.ErrMethodNotAllowed) {
		w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	}
	if werr := proxy.WriteError(w, err); werr != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", werr)
	}
}
