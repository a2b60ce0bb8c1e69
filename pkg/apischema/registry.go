package apischema

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"sync"

	"github.com/gorilla/mux"

	"github.com/naumanni/naumanni-server/pkg/normalizr"
)

// ErrRouteNotFound means no schema is registered for a URL.
var ErrRouteNotFound = errors.New("no schema registered for route")

// SchemaFunc builds the schema of one endpoint. vars holds the values bound
// to the pattern variables.
type SchemaFunc func(vars map[string]string) normalizr.Schema

// apiURLPattern splits an upstream URL into host and versioned API path.
var apiURLPattern = regexp.MustCompile(`^(?:https?|wss?)://([^/?#]+)/api/v1(/[^?#]*)`)

// ExtractAPIPath returns the host and the path following /api/v1 in rawURL.
// The query string is not part of the path. ok is false when rawURL is not a
// versioned API URL.
func ExtractAPIPath(rawURL string) (host, apiPath string, ok bool) {
	m := apiURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Registry holds path rules and streaming event schemas. It is safe for
// concurrent use once built; registration is expected to happen at startup.
type Registry struct {
	mu       sync.RWMutex
	router   *mux.Router
	funcs    map[string]SchemaFunc
	patterns []string
	streams  map[string]normalizr.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	router := mux.NewRouter()
	router.SkipClean(true)
	return &Registry{
		router:  router,
		funcs:   map[string]SchemaFunc{},
		streams: map[string]normalizr.Schema{},
	}
}

// Register adds a rule. Patterns use gorilla/mux syntax, e.g.
// "/timelines/tag/{hashtag}". Registering the same pattern twice keeps the
// first rule.
func (r *Registry) Register(pattern string, fn SchemaFunc) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.funcs[pattern]; dup {
		return r
	}
	r.router.NewRoute().Path(pattern).Name(pattern)
	r.funcs[pattern] = fn
	r.patterns = append(r.patterns, pattern)
	return r
}

// Patterns returns the registered patterns in match order.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.patterns...)
}

// Match resolves an API path (without the /api/v1 prefix).
func (r *Registry) Match(apiPath string) (normalizr.Schema, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: apiPath}}
	var match mux.RouteMatch
	if !r.router.Match(req, &match) || match.Route == nil {
		return nil, nil, false
	}
	fn, ok := r.funcs[match.Route.GetName()]
	if !ok {
		return nil, nil, false
	}
	return fn(match.Vars), match.Vars, true
}

// Resolve returns the schema for a full upstream URL.
func (r *Registry) Resolve(rawURL string) (normalizr.Schema, error) {
	_, apiPath, ok := ExtractAPIPath(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an API URL", ErrRouteNotFound, rawURL)
	}
	schema, _, ok := r.Match(apiPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, apiPath)
	}
	return schema, nil
}

// RegisterStream sets the payload schema of a streaming event.
func (r *Registry) RegisterStream(event string, schema normalizr.Schema) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[event] = schema
	return r
}

// Stream returns the payload schema of a streaming event.
func (r *Registry) Stream(event string) (normalizr.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[event]
	return s, ok
}

// StreamEvents returns the events with a payload schema, sorted.
func (r *Registry) StreamEvents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]string, 0, len(r.streams))
	for event := range r.streams {
		events = append(events, event)
	}
	slices.Sort(events)
	return events
}

// Static returns a SchemaFunc that ignores its variables.
func Static(schema normalizr.Schema) SchemaFunc {
	return func(map[string]string) normalizr.Schema { return schema }
}
