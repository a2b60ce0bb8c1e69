package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/telemetry/logging"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
	"github.com/naumanni/naumanni-server/pkg/telemetry/tracing"
)

// streamRequestHeaders are the client headers sent on the upstream
// handshake. Subprotocols are negotiated separately.
var streamRequestHeaders = []string{
	"Accept-Language",
	"Authorization",
	"User-Agent",
}

// WebSocketHandler bridges a client streaming connection to the upstream
// streaming API, filtering status and notification payloads on the way.
type WebSocketHandler struct {
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	pipeline *proxy.Pipeline
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
}

// NewWebSocketHandler creates a streaming handler. collector and tracer may
// be nil.
func NewWebSocketHandler(cfg config.WebSocketConfig, dialer *websocket.Dialer, pipeline *proxy.Pipeline, collector *metrics.Collector, tracer *tracing.Tracer) *WebSocketHandler {
	return &WebSocketHandler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     CheckOrigin,
		},
		dialer:   dialer,
		pipeline: pipeline,
		metrics:  collector,
		tracer:   tracer,
	}
}

// CheckOrigin accepts a handshake only when the Origin host equals the host
// the client addressed: X-Forwarded-Server when a front proxy sets it,
// otherwise Host. Requests without an Origin are rejected.
func CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := r.Header.Get("X-Forwarded-Server")
	if host == "" {
		host = r.Host
	}
	return strings.EqualFold(u.Host, host)
}

// ServeHTTP implements http.Handler. It returns when the session ends.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithSession(r.Context(), uuid.NewString())

	target, err := proxy.DecodeStreamTarget(strings.TrimPrefix(r.URL.EscapedPath(), WebSocketPrefix), r.URL.RawQuery)
	if err != nil {
		slog.DebugContext(ctx, "rejected stream request", "error", err)
		if werr := proxy.WriteError(w, err); werr != nil {
			slog.ErrorContext(ctx, "failed to write error response", "error", werr)
		}
		return
	}

	protocols := websocket.Subprotocols(r)
	var responseHeader http.Header
	if len(protocols) > 0 {
		// Mastodon clients may pass the access token as the subprotocol; it
		// is echoed back unchanged.
		responseHeader = http.Header{"Sec-Websocket-Protocol": {protocols[0]}}
	}

	client, err := h.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		// Upgrade has already replied to the client.
		slog.DebugContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	upstream, err := h.dial(ctx, r, target, protocols)
	if err != nil {
		slog.WarnContext(ctx, "upstream stream connect failed", "upstream_host", target.Host, "error", err)
		h.metrics.RecordUpstreamError(proxy.NewTransportError(target.Host, err).Kind())
		closeWith(client, websocket.CloseInternalServerErr, "upstream unavailable", h.cfg.WriteTimeout)
		_ = client.Close()
		return
	}

	s := &session{
		h:        h,
		client:   client,
		upstream: upstream,
		done:     make(chan struct{}),
	}
	s.run(ctx, target)
}

func (h *WebSocketHandler) dial(ctx context.Context, r *http.Request, target *url.URL, protocols []string) (*websocket.Conn, error) {
	dialer := *h.dialer
	dialer.Subprotocols = protocols

	header := http.Header{}
	proxy.CopyHeaders(header, r.Header, streamRequestHeaders)

	ctx, cancel := context.WithTimeout(ctx, h.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, &proxy.UpstreamHTTPError{Host: target.Host, StatusCode: resp.StatusCode}
		}
		return nil, err
	}
	return conn, nil
}

// session is one bridged client connection. Only relayUpstream writes data
// frames to the client; pings go through WriteControl, which gorilla allows
// concurrently.
type session struct {
	h        *WebSocketHandler
	client   *websocket.Conn
	upstream *websocket.Conn

	done     chan struct{}
	stopOnce sync.Once
}

func (s *session) run(ctx context.Context, target *url.URL) {
	ctx, span := s.h.tracer.Start(ctx, "stream.session")
	defer span.End()
	tracing.SetUpstreamAttributes(span, target.Host, target.Path)

	s.h.metrics.SessionOpened()
	defer s.h.metrics.SessionClosed()

	start := time.Now()
	slog.InfoContext(ctx, "stream session opened", "upstream_host", target.Host)

	go s.pingLoop(ctx)
	go s.readClient(ctx)
	s.relayUpstream(ctx)
	s.stop()

	slog.InfoContext(ctx, "stream session closed",
		"upstream_host", target.Host,
		"duration", time.Since(start),
	)
}

func (s *session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		_ = s.upstream.Close()
		_ = s.client.Close()
	})
}

func (s *session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// relayUpstream copies upstream messages to the client until either side
// goes away.
func (s *session) relayUpstream(ctx context.Context) {
	for {
		messageType, data, err := s.upstream.ReadMessage()
		if err != nil {
			if s.stopped() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "upstream stream ended", "error", err)
			}
			closeWith(s.client, websocket.CloseNormalClosure, "", s.h.cfg.WriteTimeout)
			return
		}

		if messageType == websocket.TextMessage {
			data = s.filter(ctx, data)
		}

		if err := s.client.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteTimeout)); err != nil {
			return
		}
		if err := s.client.WriteMessage(messageType, data); err != nil {
			slog.DebugContext(ctx, "client write failed", "error", err)
			return
		}
	}
}

// filter returns the message to relay.
func (s *session) filter(ctx context.Context, data []byte) []byte {
	event, out, err := s.h.pipeline.FilterMessage(ctx, data)
	if err != nil {
		slog.WarnContext(ctx, "stream message not filtered", "event", event, "error", err)
		s.h.metrics.RecordStreamEvent(event)
		return data
	}
	s.h.metrics.RecordStreamEvent(event)
	return out
}

// readClient consumes client frames so control messages are processed.
// Client messages are logged and never forwarded.
func (s *session) readClient(ctx context.Context) {
	defer s.stop()
	for {
		_, data, err := s.client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "client stream ended", "error", err)
			}
			return
		}
		var message any
		if err := json.Unmarshal(data, &message); err != nil {
			slog.DebugContext(ctx, "ignored non-JSON client message", "size", len(data))
			continue
		}
		slog.DebugContext(ctx, "ignored client message", "message", message)
	}
}

// pingLoop keeps both legs alive and ends the session when ctx is
// cancelled, which happens when the server force-closes after draining.
func (s *session) pingLoop(ctx context.Context) {
	var tick <-chan time.Time
	if s.h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.h.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			closeWith(s.client, websocket.CloseGoingAway, "server shutting down", s.h.cfg.WriteTimeout)
			s.stop()
			return
		case <-tick:
			deadline := time.Now().Add(s.h.cfg.WriteTimeout)
			if err := s.upstream.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.DebugContext(ctx, "upstream ping failed", "error", err)
				s.stop()
				return
			}
			if err := s.client.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.DebugContext(ctx, "client ping failed", "error", err)
				s.stop()
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
}
