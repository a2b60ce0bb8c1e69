package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *plugin.App) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	app, err := NewPluginApp(cfg.Plugins, nil)
	if err != nil {
		t.Fatalf("NewPluginApp() error = %v", err)
	}
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	pipeline := proxy.NewPipeline(apischema.NewMastodonRegistry(mastodon.NewEntities()), app.Bus(), collector, nil)
	srv := New(Options{
		Config:    cfg,
		App:       app,
		Pipeline:  pipeline,
		Store:     statusstore.NewMemory(),
		Collector: collector,
		Build:     BuildInfo{Version: "1.2.3", Commit: "abc"},
	})
	return srv, app
}

func TestNewPluginApp(t *testing.T) {
	app, err := NewPluginApp(config.PluginsConfig{Enabled: []string{"annotate", "mute"}}, nil)
	if err != nil {
		t.Fatalf("NewPluginApp() error = %v", err)
	}
	plugins := app.Plugins()
	if len(plugins) != 2 || plugins[0].ID() != "annotate" || plugins[1].ID() != "mute" {
		t.Errorf("installed = %v", plugins)
	}

	if _, err := NewPluginApp(config.PluginsConfig{Enabled: []string{"nope"}}, nil); err == nil {
		t.Error("NewPluginApp(unknown) succeeded")
	}
}

func TestServer_Routes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"9","acct":"alice","username":"alice"}`)
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, nil)
	h, err := srv.Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	gw := httptest.NewServer(h)
	defer gw.Close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"ping", "/ping", http.StatusOK, "pong"},
		{"ready", "/ready", http.StatusOK, `"status":"ready"`},
		{"version", "/version", http.StatusOK, `"version":"1.2.3"`},
		{"plugins", "/plugins", http.StatusOK, `"id":"mute"`},
		{"plugin route", "/plugins/mute/", http.StatusOK, `"keywords"`},
		{"metrics", "/metrics", http.StatusOK, "naumanni_gateway_"},
		{"proxy keeps double slash", "/proxy/" + upstream.URL + "/api/v1/accounts/verify_credentials", http.StatusOK, `"acct":"alice"`},
		{"unknown", "/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, gw.URL+tt.path, nil)
			req.Header.Set("Authorization", "Bearer token")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("GET %s = %d, want %d: %s", tt.path, resp.StatusCode, tt.wantStatus, body)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("GET %s body = %s, want %q", tt.path, body, tt.wantBody)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Errorf("GET %s: missing X-Request-ID", tt.path)
			}
		})
	}
}

func TestServer_EmitsAfterInitializeWebserver(t *testing.T) {
	srv, app := newTestServer(t, nil)

	var calls atomic.Int32
	app.Bus().Subscribe("test", plugin.EventAfterInitializeWebserver, plugin.HandlerFunc(
		func(_ context.Context, args plugin.Args) (any, error) {
			if args["router"] == nil {
				t.Error("router missing from event args")
			}
			calls.Add(1)
			return nil, nil
		}))

	if _, err := srv.Handler(); err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if _, err := srv.Handler(); err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("event emitted %d times, want 1", got)
	}
}

func TestServer_StatusEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Status.PollInterval = 10 * time.Millisecond
	cfg.Status.WaitTimeout = time.Second

	srv, _ := newTestServer(t, cfg)
	var signalled atomic.Int32
	srv.opts.SignalStatus = func() error {
		signalled.Add(1)
		return statusstore.SaveReport(context.Background(), srv.opts.Store,
			&statusstore.Report{Timestamp: statusstore.UnixSeconds(time.Now())})
	}
	h, _ := srv.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status?since=1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var report statusstore.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil || report.Timestamp <= 1 {
		t.Errorf("report = %s", w.Body)
	}
	if signalled.Load() != 1 {
		t.Errorf("SignalStatus called %d times", signalled.Load())
	}
}

// serveInBackground starts srv on a loopback listener.
func serveInBackground(t *testing.T, srv *Server) (addr string, done <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return "http://" + ln.Addr().String(), errc
}

// slowUpstream blocks every request until release is closed.
func slowUpstream(t *testing.T, release <-chan struct{}) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "done")
	}))
	t.Cleanup(up.Close)
	return up
}

func waitForActivity(t *testing.T, srv *Server, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.Activity().Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("activity = %d, want %d", srv.Activity().Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_DrainWaitsForInflight(t *testing.T) {
	release := make(chan struct{})
	up := slowUpstream(t, release)

	srv, _ := newTestServer(t, nil)
	addr, done := serveInBackground(t, srv)

	result := make(chan string, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, addr+"/proxy/"+up.URL+"/api/v1/instance", nil)
		req.Header.Set("Authorization", "Bearer token")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		result <- string(body)
	}()
	waitForActivity(t, srv, 1)

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	start := time.Now()
	remaining := srv.Drain(5*time.Second, 10*time.Millisecond)
	elapsed := time.Since(start)

	if remaining != 0 {
		t.Errorf("Drain() = %d, want 0", remaining)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Drain() took %v, want it to return once the request finished", elapsed)
	}
	if got := <-result; got != "done" {
		t.Errorf("in-flight request got %q, want done", got)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

func TestServer_DrainIsBounded(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	up := slowUpstream(t, release)

	srv, _ := newTestServer(t, nil)
	addr, done := serveInBackground(t, srv)

	go func() {
		req, _ := http.NewRequest(http.MethodGet, addr+"/proxy/"+up.URL+"/api/v1/instance", nil)
		req.Header.Set("Authorization", "Bearer token")
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}()
	waitForActivity(t, srv, 1)

	type drainResult struct {
		remaining int64
		elapsed   time.Duration
	}
	drained := make(chan drainResult, 1)
	go func() {
		start := time.Now()
		remaining := srv.Drain(500*time.Millisecond, 20*time.Millisecond)
		drained <- drainResult{remaining, time.Since(start)}
	}()

	// No new connection is accepted while the in-flight request drains.
	client := &http.Client{
		Timeout:   time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	refused := false
	for deadline := time.Now().Add(400 * time.Millisecond); time.Now().Before(deadline); {
		resp, err := client.Get(addr + "/ping")
		if err != nil {
			refused = true
			break
		}
		resp.Body.Close()
		time.Sleep(10 * time.Millisecond)
	}
	if !refused {
		t.Error("GET /ping succeeded during drain, want the connection refused")
	}
	if n := srv.Activity().Count(); n != 1 {
		t.Errorf("activity during drain = %d, want 1", n)
	}

	res := <-drained
	remaining, elapsed := res.remaining, res.elapsed
	if remaining != 1 {
		t.Errorf("Drain() = %d, want 1 force-closed", remaining)
	}
	if elapsed < 450*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("Drain() took %v, want about the grace period", elapsed)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
	// The handler observes cancellation and finishes.
	waitForActivity(t, srv, 0)
}
