// Package proxy holds the pieces shared by the HTTP and WebSocket gateway
// handlers: decoding the upstream target from the request path, the header
// allow-lists, upstream error classification and the entity filter
// Pipeline.
//
// # Targets
//
// Clients address the upstream by embedding its full URL in the gateway
// path, optionally percent-encoded:
//
//	GET /proxy/https://mastodon.example/api/v1/timelines/home?limit=20
//	GET /ws/wss%3A%2F%2Fmastodon.example%2Fapi%2Fv1%2Fstreaming%3Fstream%3Duser
//
// Collapsed schemes ("https:/host") are repaired and scheme-less targets
// default to https (wss for streaming).
//
// # Filtering
//
// A Pipeline decodes a JSON body, resolves its schema from the upstream URL,
// normalizes it into an entity table, runs every entity type through the
// plugin filter chain and denormalizes the result:
//
//	out, err := pipeline.FilterResponse(ctx, target.String(), body)
//	if err != nil {
//	    out = body // pass the original through
//	}
//
// # Errors
//
// HandleError maps gateway and upstream failures to the JSON error envelope
// of package types. Upstream error bodies are never relayed.
package proxy
