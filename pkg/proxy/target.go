package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidTarget is returned when the request path does not carry a
// usable upstream URL.
var ErrInvalidTarget = errors.New("invalid upstream target")

// DecodeTarget builds the upstream http(s) URL from the part of the request
// path following the gateway prefix and the raw query string.
func DecodeTarget(escapedPath, rawQuery string) (*url.URL, error) {
	return decodeTarget(escapedPath, rawQuery, []string{"http", "https"}, "https")
}

// DecodeStreamTarget is DecodeTarget for streaming endpoints: http becomes
// ws, https becomes wss and scheme-less targets default to wss.
func DecodeStreamTarget(escapedPath, rawQuery string) (*url.URL, error) {
	u, err := decodeTarget(escapedPath, rawQuery, []string{"http", "https", "ws", "wss"}, "wss")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u, nil
}

func decodeTarget(escapedPath, rawQuery string, schemes []string, defaultScheme string) (*url.URL, error) {
	raw, err := url.PathUnescape(escapedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	raw = repairScheme(raw, schemes, defaultScheme)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidTarget, raw)
	}
	// The encoded target may carry its own query.
	switch {
	case rawQuery == "":
	case u.RawQuery == "":
		u.RawQuery = rawQuery
	default:
		u.RawQuery += "&" + rawQuery
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

// repairScheme rewrites "https:/host" and "https:host" to "https://host" and
// prefixes defaultScheme when no known scheme is present.
func repairScheme(s string, schemes []string, defaultScheme string) string {
	lower := strings.ToLower(s)
	for _, scheme := range schemes {
		prefix := scheme + ":"
		if strings.HasPrefix(lower, prefix) {
			return scheme + "://" + strings.TrimLeft(s[len(prefix):], "/")
		}
	}
	return defaultScheme + "://" + strings.TrimLeft(s, "/")
}
