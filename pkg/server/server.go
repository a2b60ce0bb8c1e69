package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/proxy/handlers"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
	"github.com/naumanni/naumanni-server/pkg/telemetry/health"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
	"github.com/naumanni/naumanni-server/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary on the /version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options are the collaborators of a Server. Collector and Tracer may be
// nil.
type Options struct {
	Config    *config.Config
	App       *plugin.App
	Pipeline  *proxy.Pipeline
	Store     statusstore.Store
	Collector *metrics.Collector
	Tracer    *tracing.Tracer
	Build     BuildInfo

	// SignalStatus asks the master to collect a fresh status report. It may
	// be nil when the worker runs without a master.
	SignalStatus func() error
}

// Server is one worker's HTTP server.
type Server struct {
	opts     Options
	cfg      *config.ServerConfig
	activity *handlers.Activity
	health   *health.Checker

	// baseCtx is the parent of every request context. Cancelling it ends
	// streaming sessions that outlive the drain.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	routerOnce sync.Once
	router     http.Handler
	routerErr  error

	mu         sync.Mutex
	httpServer *http.Server
	running    bool
}

// New creates a server. The router is built, and the
// after-initialize-webserver event emitted, on the first call to Handler or
// Serve.
func New(opts Options) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:       opts,
		cfg:        &opts.Config.Server,
		activity:   &handlers.Activity{},
		health:     health.New(2 * time.Second),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	if opts.Store != nil {
		s.health.RegisterCheck("status_store", opts.Store.Ping)
	}
	return s
}

// Activity returns the in-flight request and session counter.
func (s *Server) Activity() *handlers.Activity {
	return s.activity
}

// Serve accepts connections on ln until Shutdown or Drain. It returns nil
// after a graceful stop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	if s.baseCtx.Err() != nil {
		// Drained or shut down before it started.
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}

	handler, err := s.Handler()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug),
	}

	if s.cfg.TLS.Enabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
		ln = tls.NewListener(ln, tlsConfig)
	}
	s.running = true
	srv := s.httpServer
	s.mu.Unlock()

	slog.Info("serving gateway",
		"address", ln.Addr().String(),
		"tls_enabled", s.cfg.TLS.Enabled,
	)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Drain stops accepting connections and waits for in-flight requests and
// streaming sessions, re-checking every interval, for at most grace. Whatever
// is still active then is closed. It reports the number of units that were
// force-closed.
func (s *Server) Drain(grace, interval time.Duration) int64 {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(grace)
	shutdownCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		if srv == nil {
			return
		}
		// Shutdown closes the listeners immediately and then waits for
		// connections to go idle. Hijacked streams are not tracked by it and
		// are counted by activity instead.
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("http shutdown error", "error", err)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for s.activity.Count() > 0 {
		slog.Info("draining", "active", s.activity.Count(), "remaining", time.Until(deadline).Round(time.Millisecond))
		select {
		case <-ticker.C:
		case <-shutdownCtx.Done():
			remaining := s.activity.Count()
			slog.Warn("drain grace elapsed, closing active connections", "active", remaining)
			_ = s.forceClose()
			return remaining
		}
	}

	// Let the last responses flush before closing what is left.
	select {
	case <-shutdownDone:
	case <-shutdownCtx.Done():
	}
	_ = s.forceClose()
	return 0
}

// Shutdown stops the server immediately, closing every connection.
func (s *Server) Shutdown() error {
	return s.forceClose()
}

func (s *Server) forceClose() error {
	s.cancelBase()
	s.mu.Lock()
	srv := s.httpServer
	s.running = false
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

// IsRunning reports whether Serve is active.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) configureTLS() (*tls.Config, error) {
	if s.cfg.TLS.CertFile == "" || s.cfg.TLS.KeyFile == "" {
		return nil, fmt.Errorf("TLS cert_file and key_file are required")
	}
	reloader, err := newCertReloader(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	if err != nil {
		return nil, err
	}
	go reloader.watch(s.baseCtx, certCheckInterval)

	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: reloader.GetCertificate,
		NextProtos:     []string{"http/1.1"},
	}, nil
}
