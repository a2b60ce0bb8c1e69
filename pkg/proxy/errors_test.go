package proxy

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/naumanni/naumanni-server/pkg/proxy/types"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{
			name:     "upstream 503",
			err:      &UpstreamHTTPError{Host: "m.example", StatusCode: 503},
			wantCode: http.StatusUnprocessableEntity,
			wantType: types.ErrorTypeUpstream,
		},
		{
			name:     "upstream 404",
			err:      &UpstreamHTTPError{Host: "m.example", StatusCode: 404},
			wantCode: http.StatusNotFound,
			wantType: types.ErrorTypeUpstreamClient,
		},
		{
			name:     "tls",
			err:      NewTransportError("m.example", fmt.Errorf("dial: %w", x509.UnknownAuthorityError{})),
			wantCode: http.StatusUnprocessableEntity,
			wantType: types.ErrorTypeUpstream,
		},
		{
			name:     "transport",
			err:      NewTransportError("m.example", errors.New("connection refused")),
			wantCode: http.StatusUnprocessableEntity,
			wantType: types.ErrorTypeUpstream,
		},
		{
			name:     "authorization",
			err:      ErrAuthorizationRequired,
			wantCode: http.StatusUnauthorized,
			wantType: types.ErrorTypeAuthentication,
		},
		{
			name:     "length",
			err:      ErrUploadLengthRequired,
			wantCode: http.StatusLengthRequired,
			wantType: types.ErrorTypeLengthRequired,
		},
		{
			name:     "method",
			err:      ErrMethodNotAllowed,
			wantCode: http.StatusMethodNotAllowed,
			wantType: types.ErrorTypeMethodNotAllowed,
		},
		{
			name:     "target",
			err:      fmt.Errorf("%w: missing host", ErrInvalidTarget),
			wantCode: http.StatusBadRequest,
			wantType: types.ErrorTypeInvalidRequest,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantType: types.ErrorTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := HandleError(tt.err)
			if got := resp.Error.HTTPStatusCode(); got != tt.wantCode {
				t.Errorf("status = %d, want %d", got, tt.wantCode)
			}
			if resp.Error.Type != tt.wantType {
				t.Errorf("type = %q, want %q", resp.Error.Type, tt.wantType)
			}
		})
	}
}

func TestHandleError_Reasons(t *testing.T) {
	tlsResp := HandleError(NewTransportError("h", x509.HostnameError{}))
	plainResp := HandleError(NewTransportError("h", errors.New("no route to host")))
	if tlsResp.Error.Message == plainResp.Error.Message {
		t.Errorf("tls and transport failures share reason %q", tlsResp.Error.Message)
	}
	if tlsResp.Error.Message != "upstream tls handshake failed" {
		t.Errorf("tls reason = %q", tlsResp.Error.Message)
	}
}
