package handlers

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naumanni/naumanni-server/pkg/config"
)

// NewUpstreamClient returns the HTTP client used to reach Mastodon
// instances. Redirects are returned to the caller instead of followed.
func NewUpstreamClient(cfg config.UpstreamConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       upstreamTLSConfig(cfg),
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewUpstreamDialer returns the WebSocket dialer used for streaming
// connections.
func NewUpstreamDialer(cfg config.UpstreamConfig, ws config.WebSocketConfig) *websocket.Dialer {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   dialer.DialContext,
		HandshakeTimeout: ws.HandshakeTimeout,
		ReadBufferSize:   ws.ReadBufferSize,
		WriteBufferSize:  ws.WriteBufferSize,
		TLSClientConfig:  upstreamTLSConfig(cfg),
	}
}

func upstreamTLSConfig(cfg config.UpstreamConfig) *tls.Config {
	// #nosec G402 - InsecureSkipVerify is an explicit development setting.
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
}
