package plugin

import (
	"context"
	"fmt"
	"sync"
)

// Lifecycle events.
const (
	// EventAfterInitializeWebserver is emitted once per worker after the
	// HTTP router is built. Args: "router" (*mux.Router).
	EventAfterInitializeWebserver = "after-initialize-webserver"

	// EventAfterStartFirstProcess is emitted by the first worker only.
	// Args: "task_id" (int).
	EventAfterStartFirstProcess = "after-start-first-process"

	// EventBeforeStop is emitted by a worker when it starts draining.
	EventBeforeStop = "before-stop"
)

// Args are the keyword arguments of an event.
type Args map[string]any

// Handler handles one event.
type Handler interface {
	Handle(ctx context.Context, args Args) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, args Args) (any, error) {
	return f(ctx, args)
}

// ResultHook is invoked after every handler with its result and the current
// arguments. The returned Args are passed to the next handler.
type ResultHook func(result any, args Args) Args

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	PluginID string
	Event    string
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.PluginID, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

type subscription struct {
	pluginID string
	handler  Handler
}

// Bus maps event names to ordered handler lists.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[string][]subscription{}}
}

// Subscribe appends h to the handlers of event.
func (b *Bus) Subscribe(pluginID, event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[event] = append(b.subs[event], subscription{pluginID: pluginID, handler: h})
}

// HasHandlers reports whether any handler is subscribed to event.
func (b *Bus) HasHandlers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event]) > 0
}

func (b *Bus) handlers(event string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]subscription(nil), b.subs[event]...)
}

// Emit runs the handlers of event without a deadline. Handlers must not
// block on I/O; use EmitContext for those.
func (b *Bus) Emit(event string, args Args, hook ResultHook) (Args, error) {
	return b.dispatch(context.Background(), event, args, hook)
}

// EmitContext runs the handlers of event in subscription order, each awaited
// before the next starts. It stops at the first handler error or when ctx is
// done. The returned Args are the arguments after the last hook call.
func (b *Bus) EmitContext(ctx context.Context, event string, args Args, hook ResultHook) (Args, error) {
	return b.dispatch(ctx, event, args, hook)
}

func (b *Bus) dispatch(ctx context.Context, event string, args Args, hook ResultHook) (Args, error) {
	if args == nil {
		args = Args{}
	}
	for _, sub := range b.handlers(event) {
		if err := ctx.Err(); err != nil {
			return args, err
		}
		result, err := sub.handler.Handle(ctx, args)
		if err != nil {
			return args, &HandlerError{PluginID: sub.pluginID, Event: event, Err: err}
		}
		if hook != nil {
			args = hook(result, args)
		}
	}
	return args, nil
}
