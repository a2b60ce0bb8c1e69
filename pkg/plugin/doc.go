// Package plugin provides named-event dispatch between the gateway and its
// plugins.
//
// Plugins subscribe handlers to event names when they are installed into an
// App. Emitting an event runs the subscribed handlers one at a time, in
// subscription order. An optional ResultHook sees every handler's result and
// may rewrite the arguments passed to the next handler, which turns an event
// into a filter chain:
//
//	args, err := bus.EmitContext(ctx, "filter-statuses", plugin.Args{"objects": statuses}, hook)
//
// Lifecycle events emitted by the gateway are listed as Event constants.
package plugin
