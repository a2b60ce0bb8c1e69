// Package types defines the JSON error envelope returned by the gateway.
//
// Every error the gateway itself produces has the same shape:
//
//	{"error": {"message": "upstream unreachable", "type": "upstream_error", "code": "upstream_unreachable"}}
//
// The HTTP status is derived from the error type, except for relayed
// upstream client errors which keep the upstream status.
package types
