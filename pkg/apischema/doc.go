// Package apischema maps upstream API URLs to the normalizr schema of their
// response bodies.
//
// Rules are registered as path patterns with {name} variables and are matched
// against the part of the URL that follows the /api/v1 prefix. The first
// registered rule that matches wins. URLs that are not versioned API URLs,
// or that no rule matches, resolve to ErrRouteNotFound, which callers treat
// as "pass the body through unchanged".
//
// Streaming API events are looked up by event name rather than by path; see
// RegisterStream.
package apischema
