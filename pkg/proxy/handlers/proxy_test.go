package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/plugins/annotate"
	"github.com/naumanni/naumanni-server/pkg/plugins/mute"
	"github.com/naumanni/naumanni-server/pkg/proxy"
)

const timelineBody = `[
 {"id":"4","content":"<p>hello <a href=\"https://example.com/x\">link</a></p>","account":{"id":"1","acct":"alice"},"reblog":null},
 {"id":"5","content":"<p>buy now</p>","account":{"id":"2","acct":"spammer"},"reblog":null}
]`

func testUpstreamConfig() config.UpstreamConfig {
	return config.UpstreamConfig{
		DialTimeout:           2 * time.Second,
		TLSHandshakeTimeout:   2 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		MaxIdleConnsPerHost:   2,
	}
}

// testPipeline installs the mute plugin (muting @spammer) followed by the
// annotate plugin.
func testPipeline(t *testing.T) *proxy.Pipeline {
	t.Helper()
	app := plugin.NewApp(nil)
	if err := app.Install(mute.NewWithRules(&mute.Rules{Accounts: []string{"spammer"}})); err != nil {
		t.Fatalf("install mute: %v", err)
	}
	if err := app.Install(annotate.New()); err != nil {
		t.Fatalf("install annotate: %v", err)
	}
	return proxy.NewPipeline(apischema.NewMastodonRegistry(mastodon.NewEntities()), app.Bus(), nil, nil)
}

func newTestProxyHandler(t *testing.T) *ProxyHandler {
	t.Helper()
	return NewProxyHandler(NewUpstreamClient(testUpstreamConfig()), testPipeline(t), nil, nil)
}

// upstreamRecorder is a fake Mastodon instance that records the last
// request it received.
type upstreamRecorder struct {
	calls   int
	method  string
	path    string
	query   string
	header  http.Header
	body    string
	handler http.HandlerFunc
}

func newUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *upstreamRecorder) {
	t.Helper()
	rec := &upstreamRecorder{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.calls++
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.header = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		rec.body = string(data)
		rec.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func proxyPath(upstreamURL, apiPath string) string {
	return ProxyPrefix + upstreamURL + "/api/v1" + apiPath
}

func TestProxyHandler_FiltersTimeline(t *testing.T) {
	srv, rec := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Link", `<https://m.example/api/v1/timelines/home?max_id=4>; rel="next"`)
		w.Header().Set("Set-Cookie", "session=secret")
		w.Header().Set("X-Runtime", "0.1")
		io.WriteString(w, timelineBody)
	})

	req := httptest.NewRequest(http.MethodGet, proxyPath(srv.URL, "/timelines/home")+"?limit=2", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Cookie", "gateway=1")
	req.Header.Set("X-Custom", "drop")
	w := httptest.NewRecorder()

	newTestProxyHandler(t).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if rec.path != "/api/v1/timelines/home" || rec.query != "limit=2" {
		t.Errorf("upstream got %s?%s", rec.path, rec.query)
	}
	if rec.header.Get("Authorization") != "Bearer token" {
		t.Errorf("Authorization not forwarded")
	}
	for _, h := range []string{"Cookie", "X-Custom"} {
		if rec.header.Get(h) != "" {
			t.Errorf("request header %s forwarded", h)
		}
	}

	if w.Header().Get("Link") == "" {
		t.Errorf("Link header not relayed")
	}
	for _, h := range []string{"Set-Cookie", "X-Runtime"} {
		if w.Header().Get(h) != "" {
			t.Errorf("response header %s relayed", h)
		}
	}

	var statuses []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("body is not a JSON array: %s", w.Body)
	}
	if len(statuses) != 1 || statuses[0]["id"] != "4" {
		t.Fatalf("statuses = %v, want only id 4", statuses)
	}
	if statuses[0][annotate.FieldPlainContent] != "hello link" {
		t.Errorf("plain_content = %v", statuses[0][annotate.FieldPlainContent])
	}
	if got := w.Header().Get("Content-Length"); got != "" && got != strconv.Itoa(w.Body.Len()) {
		t.Errorf("Content-Length = %s, body is %d bytes", got, w.Body.Len())
	}
}

func TestProxyHandler_Passthrough(t *testing.T) {
	tests := []struct {
		name        string
		apiPath     string
		contentType string
		status      int
		body        string
	}{
		{"no schema", "/instance", "application/json", http.StatusOK, `{"uri":"m.example","title":"<b>x</b>"}`},
		{"not json", "/timelines/home", "text/html", http.StatusOK, "<html></html>"},
		{"schema mismatch", "/timelines/home", "application/json", http.StatusOK, `{"error":"not a list"}`},
		{"invalid json", "/timelines/home", "application/json", http.StatusOK, `[{"id":"1"`},
		{"redirect", "/timelines/home", "text/plain", http.StatusFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "https://m.example/elsewhere")
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			req := httptest.NewRequest(http.MethodGet, proxyPath(srv.URL, tt.apiPath), nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()
			newTestProxyHandler(t).ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body, tt.body)
			}
			if tt.status == http.StatusFound && w.Header().Get("Location") != "https://m.example/elsewhere" {
				t.Errorf("Location = %q", w.Header().Get("Location"))
			}
		})
	}
}

func TestProxyHandler_RejectsBeforeUpstream(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		apiPath    string
		auth       bool
		unknownLen bool
		wantStatus int
		wantType   string
	}{
		{"missing authorization", http.MethodGet, "/timelines/home", false, false, http.StatusUnauthorized, "authentication_error"},
		{"undeclared length", http.MethodPost, "/statuses", true, true, http.StatusLengthRequired, "length_required"},
		{"method not allowed", http.MethodOptions, "/timelines/home", true, false, http.StatusMethodNotAllowed, "method_not_allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})

			req := httptest.NewRequest(tt.method, proxyPath(srv.URL, tt.apiPath), strings.NewReader("status=hi"))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer token")
			}
			if tt.unknownLen {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			newTestProxyHandler(t).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if rec.calls != 0 {
				t.Errorf("upstream called %d times", rec.calls)
			}
			var body struct {
				Error struct {
					Type string `json:"type"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not an error envelope: %s", w.Body)
			}
			if body.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", body.Error.Type, tt.wantType)
			}
		})
	}
}

func TestProxyHandler_MethodNotAllowedSetsAllow(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, ProxyPrefix+"https://m.example/api/v1/timelines/home", nil)
	w := httptest.NewRecorder()
	newTestProxyHandler(t).ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Allow"), "PATCH") {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}

func TestProxyHandler_AppRegistrationWithoutToken(t *testing.T) {
	srv, rec := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","client_id":"abc","client_secret":"def"}`)
	})

	form := "client_name=naumanni&redirect_uris=urn:ietf:wg:oauth:2.0:oob&scopes=read"
	req := httptest.NewRequest(http.MethodPost, proxyPath(srv.URL, "/apps"), strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	newTestProxyHandler(t).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if rec.method != http.MethodPost || rec.body != form {
		t.Errorf("upstream got %s %q", rec.method, rec.body)
	}
	if rec.header.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type not forwarded")
	}
}

func TestProxyHandler_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
		wantType   string
	}{
		{"server error", http.StatusServiceUnavailable, http.StatusUnprocessableEntity, "upstream_error"},
		{"internal error", http.StatusInternalServerError, http.StatusUnprocessableEntity, "upstream_error"},
		{"not found", http.StatusNotFound, http.StatusNotFound, "upstream_client_error"},
		{"unauthorized", http.StatusUnauthorized, http.StatusUnauthorized, "upstream_client_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"error":"internal detail"}`)
			})

			req := httptest.NewRequest(http.MethodGet, proxyPath(srv.URL, "/statuses/1"), nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()
			newTestProxyHandler(t).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if strings.Contains(w.Body.String(), "internal detail") {
				t.Errorf("upstream body leaked: %s", w.Body)
			}
			if !strings.Contains(w.Body.String(), `"type":"`+tt.wantType+`"`) {
				t.Errorf("body = %s, want type %s", w.Body, tt.wantType)
			}
		})
	}
}

func TestProxyHandler_TransportErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		req := httptest.NewRequest(http.MethodGet, proxyPath(addr, "/timelines/home"), nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		newTestProxyHandler(t).ServeHTTP(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "upstream unreachable") {
			t.Errorf("body = %s", w.Body)
		}
	})

	t.Run("tls handshake", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.NotFoundHandler())
		defer srv.Close()

		req := httptest.NewRequest(http.MethodGet, proxyPath(srv.URL, "/timelines/home"), nil)
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		newTestProxyHandler(t).ServeHTTP(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "upstream tls handshake failed") {
			t.Errorf("body = %s", w.Body)
		}
	})
}

func TestProxyHandler_SchemeRepair(t *testing.T) {
	srv, rec := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[]`)
	})

	// Path cleaning in front proxies collapses "http://" into "http:/".
	target := strings.Replace(srv.URL, "http://", "http:/", 1)
	req := httptest.NewRequest(http.MethodGet, proxyPath(target, "/notifications"), nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	newTestProxyHandler(t).ServeHTTP(w, req)

	if w.Code != http.StatusOK || rec.path != "/api/v1/notifications" {
		t.Fatalf("status = %d, upstream path = %q", w.Code, rec.path)
	}
	if w.Body.String() != "[]" {
		t.Errorf("body = %s", w.Body)
	}
}
