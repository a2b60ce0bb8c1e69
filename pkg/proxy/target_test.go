package proxy

import (
	"errors"
	"net/http"
	"testing"
)

func TestDecodeTarget(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "plain", path: "https://m.example/api/v1/timelines/home", want: "https://m.example/api/v1/timelines/home"},
		{name: "with query", path: "https://m.example/api/v1/timelines/home", query: "limit=20&max_id=5", want: "https://m.example/api/v1/timelines/home?limit=20&max_id=5"},
		{name: "collapsed slash", path: "https:/m.example/api/v1/accounts/1", want: "https://m.example/api/v1/accounts/1"},
		{name: "http collapsed", path: "http:/localhost:3000/api/v1/accounts/1", want: "http://localhost:3000/api/v1/accounts/1"},
		{name: "escaped", path: "https%3A%2F%2Fm.example%2Fapi%2Fv1%2Fstatuses%2F1", want: "https://m.example/api/v1/statuses/1"},
		{name: "encoded query", path: "https%3A%2F%2Fm.example%2Fapi%2Fv1%2Ftimelines%2Fpublic%3Flocal%3Dtrue", want: "https://m.example/api/v1/timelines/public?local=true"},
		{name: "encoded and request query", path: "https%3A%2F%2Fm.example%2Fapi%2Fv1%2Ftimelines%2Fpublic%3Flocal%3Dtrue", query: "max_id=5", want: "https://m.example/api/v1/timelines/public?local=true&max_id=5"},
		{name: "scheme-less", path: "m.example/api/v1/instance", want: "https://m.example/api/v1/instance"},
		{name: "upper scheme", path: "HTTPS://m.example/api/v1/instance", want: "https://m.example/api/v1/instance"},
		{name: "empty", path: "", wantErr: true},
		{name: "bad escape", path: "https://m.example/%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTarget(tt.path, tt.query)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTarget) {
					t.Fatalf("DecodeTarget() error = %v, want ErrInvalidTarget", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTarget() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("DecodeTarget() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestDecodeStreamTarget(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"wss://m.example/api/v1/streaming", "stream=user", "wss://m.example/api/v1/streaming?stream=user"},
		{"https://m.example/api/v1/streaming", "", "wss://m.example/api/v1/streaming"},
		{"http://localhost/api/v1/streaming", "", "ws://localhost/api/v1/streaming"},
		{"ws:/localhost/api/v1/streaming", "", "ws://localhost/api/v1/streaming"},
		{"m.example/api/v1/streaming", "", "wss://m.example/api/v1/streaming"},
	}
	for _, tt := range tests {
		got, err := DecodeStreamTarget(tt.path, tt.query)
		if err != nil {
			t.Fatalf("DecodeStreamTarget(%q) error = %v", tt.path, err)
		}
		if got.String() != tt.want {
			t.Errorf("DecodeStreamTarget(%q) = %q, want %q", tt.path, got.String(), tt.want)
		}
	}
}

func TestCopyHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Authorization", "Bearer t")
	src.Set("Accept", "application/json")
	src.Set("Cookie", "session=1")
	src.Set("X-Forwarded-For", "10.0.0.1")
	src.Add("Accept-Language", "ja")
	src.Add("Accept-Language", "en")

	dst := http.Header{}
	CopyHeaders(dst, src, RequestHeaders)

	if dst.Get("Authorization") != "Bearer t" || dst.Get("Accept") != "application/json" {
		t.Errorf("allowed headers missing: %v", dst)
	}
	if dst.Get("Cookie") != "" || dst.Get("X-Forwarded-For") != "" {
		t.Errorf("disallowed headers forwarded: %v", dst)
	}
	if got := dst.Values("Accept-Language"); len(got) != 2 {
		t.Errorf("multi-value header = %v", got)
	}

	resp := http.Header{}
	resp.Set("Content-Type", "application/json")
	resp.Set("Set-Cookie", "x=1")
	resp.Set("Link", `<https://m.example/api/v1/timelines/home?max_id=1>; rel="next"`)
	resp.Set("X-RateLimit-Remaining", "299")
	out := http.Header{}
	CopyHeaders(out, resp, ResponseHeaders)
	if out.Get("Set-Cookie") != "" {
		t.Error("Set-Cookie relayed")
	}
	if out.Get("Link") == "" || out.Get("X-RateLimit-Remaining") != "299" {
		t.Errorf("allowed response headers missing: %v", out)
	}
}
