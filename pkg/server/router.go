package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/proxy/handlers"
	"github.com/naumanni/naumanni-server/pkg/proxy/middleware"
	"github.com/naumanni/naumanni-server/pkg/telemetry/health"
)

// Handler returns the gateway handler with its middleware chain. It is
// built once; later calls return the same handler.
func (s *Server) Handler() (http.Handler, error) {
	s.routerOnce.Do(func() {
		s.router, s.routerErr = s.buildRouter()
	})
	return s.router, s.routerErr
}

func (s *Server) buildRouter() (http.Handler, error) {
	cfg := s.opts.Config

	// Upstream URLs embedded in the path contain "//", which path cleaning
	// would collapse.
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()

	proxyHandler := handlers.NewProxyHandler(
		handlers.NewUpstreamClient(cfg.Upstream), s.opts.Pipeline, s.opts.Collector, s.opts.Tracer)
	wsHandler := handlers.NewWebSocketHandler(cfg.WebSocket,
		handlers.NewUpstreamDialer(cfg.Upstream, cfg.WebSocket), s.opts.Pipeline, s.opts.Collector, s.opts.Tracer)

	r.PathPrefix(handlers.ProxyPrefix).Handler(proxyHandler)
	r.PathPrefix(handlers.WebSocketPrefix).Handler(wsHandler).Methods(http.MethodGet)

	r.HandleFunc("/ping", handlers.PingHandler).Methods(http.MethodGet)
	r.Handle("/ready", s.health.ReadinessHandler()).Methods(http.MethodGet)
	r.Handle("/version", health.VersionHandler(s.opts.Build.Version, s.opts.Build.Commit, s.opts.Build.BuildTime)).
		Methods(http.MethodGet)
	if s.opts.Store != nil {
		r.Handle("/status", handlers.NewStatusHandler(s.opts.Store, s.opts.SignalStatus,
			cfg.Status.PollInterval, cfg.Status.WaitTimeout)).Methods(http.MethodGet)
	}
	if cfg.Telemetry.Metrics.Enabled && s.opts.Collector != nil {
		r.Handle(cfg.Telemetry.Metrics.Path, s.opts.Collector.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/plugins", handlers.PluginsHandler(s.opts.App)).Methods(http.MethodGet)
	mountPluginRoutes(r, s.opts.App)

	if _, err := s.opts.App.Bus().Emit(plugin.EventAfterInitializeWebserver, plugin.Args{"router": r}, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", plugin.EventAfterInitializeWebserver, err)
	}

	var handler http.Handler = r
	handler = middleware.CORSMiddleware(&cfg.Server.CORS)(handler)
	handler = middleware.ActivityMiddleware(s.activity, s.opts.Collector)(handler)
	handler = middleware.MetricsMiddleware(s.opts.Collector)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.TracingMiddleware(s.opts.Tracer, "naumanni.gateway")(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler, nil
}

// mountPluginRoutes serves each RouteProvider under /plugins/<id>/.
func mountPluginRoutes(r *mux.Router, app *plugin.App) {
	for _, p := range app.Plugins() {
		rp, ok := p.(plugin.RouteProvider)
		if !ok {
			continue
		}
		prefix := "/plugins/" + p.ID()
		r.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix, rp.Handler()))
		slog.Debug("mounted plugin routes", "plugin_id", p.ID(), "prefix", prefix+"/")
	}
}
