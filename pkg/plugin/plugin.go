package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Plugin is an installable extension.
type Plugin interface {
	// ID is the unique plugin identifier. HTTP routes are mounted under
	// /plugins/<id>/.
	ID() string

	// Register subscribes the plugin's handlers.
	Register(r *Registrar) error
}

// Assets describes the front-end resources a plugin ships.
type Assets struct {
	JSPackage string `json:"js_package,omitempty"`
	CSSPath   string `json:"css_path,omitempty"`
}

// AssetProvider is implemented by plugins with front-end assets.
type AssetProvider interface {
	Assets() Assets
}

// RouteProvider is implemented by plugins that serve HTTP endpoints.
type RouteProvider interface {
	Handler() http.Handler
}

// Starter is implemented by plugins with background work, such as file
// watchers. Start must return once the work is running; the work stops when
// ctx is done.
type Starter interface {
	Start(ctx context.Context) error
}

// Host is the view of the application a plugin may use. It is only valid
// while the App that installed the plugin is alive.
type Host interface {
	Logger() *slog.Logger
	Bus() *Bus
}

// Registrar is passed to Plugin.Register.
type Registrar struct {
	pluginID string
	host     Host
}

// On subscribes h to event.
func (r *Registrar) On(event string, h Handler) {
	r.host.Bus().Subscribe(r.pluginID, event, h)
}

// OnFunc subscribes fn to event.
func (r *Registrar) OnFunc(event string, fn func(ctx context.Context, args Args) (any, error)) {
	r.On(event, HandlerFunc(fn))
}

// Host returns the application handle.
func (r *Registrar) Host() Host {
	return r.host
}

// App owns the installed plugins and their event bus.
type App struct {
	mu      sync.RWMutex
	bus     *Bus
	logger  *slog.Logger
	plugins []Plugin
	byID    map[string]Plugin
}

// NewApp returns an App with an empty bus. A nil logger uses slog.Default.
func NewApp(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		bus:    NewBus(),
		logger: logger,
		byID:   map[string]Plugin{},
	}
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Bus returns the application event bus.
func (a *App) Bus() *Bus { return a.bus }

// Install registers p. Plugin ids must be unique.
func (a *App) Install(p Plugin) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := p.ID()
	if id == "" {
		return fmt.Errorf("plugin has empty id")
	}
	if _, dup := a.byID[id]; dup {
		return fmt.Errorf("plugin %q already installed", id)
	}

	r := &Registrar{pluginID: id, host: hostView{app: a, id: id}}
	if err := p.Register(r); err != nil {
		return fmt.Errorf("register plugin %q: %w", id, err)
	}
	a.plugins = append(a.plugins, p)
	a.byID[id] = p
	a.logger.Info("plugin installed", "plugin_id", id)
	return nil
}

// Plugins returns the installed plugins in installation order.
func (a *App) Plugins() []Plugin {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Plugin(nil), a.plugins...)
}

// Start starts every installed Starter.
func (a *App) Start(ctx context.Context) error {
	for _, p := range a.Plugins() {
		s, ok := p.(Starter)
		if !ok {
			continue
		}
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start plugin %q: %w", p.ID(), err)
		}
	}
	return nil
}

// Plugin looks up an installed plugin.
func (a *App) Plugin(id string) (Plugin, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.byID[id]
	return p, ok
}

// hostView keeps plugins from reaching App's install methods.
type hostView struct {
	app *App
	id  string
}

func (h hostView) Logger() *slog.Logger { return h.app.logger.With("plugin_id", h.id) }
func (h hostView) Bus() *Bus            { return h.app.bus }
