package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	bearerPattern      = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`)
	accessTokenPattern = regexp.MustCompile(`(?i)(access_token=)[^&\s"]+`)
)

// sensitiveKeys are attribute keys whose values are always dropped.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"access_token":  {},
	"password":      {},
	"cookie":        {},
}

// Redact is a slog ReplaceAttr function that hides credentials.
func Redact(groups []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		if s := RedactString(a.Value.String()); s != a.Value.String() {
			return slog.String(a.Key, s)
		}
	}
	return a
}

// RedactString masks bearer tokens and access_token query parameters in s.
func RedactString(s string) string {
	if !strings.Contains(s, "earer") && !strings.Contains(s, "EARER") && !strings.Contains(s, "access_token") {
		return s
	}
	s = bearerPattern.ReplaceAllString(s, "Bearer "+redacted)
	s = accessTokenPattern.ReplaceAllString(s, "${1}"+redacted)
	return s
}
