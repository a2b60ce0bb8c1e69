package proxy

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/naumanni/naumanni-server/pkg/proxy/types"
)

var (
	// ErrAuthorizationRequired is returned when a request other than app
	// registration carries no Authorization header.
	ErrAuthorizationRequired = errors.New("authorization required")

	// ErrUploadLengthRequired is returned when a mutating request does not
	// declare its body length.
	ErrUploadLengthRequired = errors.New("upload length required")

	// ErrMethodNotAllowed is returned for methods the gateway never forwards.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// UpstreamTransportError is a failure to get any response from upstream.
type UpstreamTransportError struct {
	Host string
	// TLS is set when the failure happened during the TLS handshake.
	TLS bool
	Err error
}

func (e *UpstreamTransportError) Error() string {
	if e.TLS {
		return fmt.Sprintf("upstream %s: tls handshake failed: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Host, e.Err)
}

func (e *UpstreamTransportError) Unwrap() error { return e.Err }

// Kind labels the failure for metrics.
func (e *UpstreamTransportError) Kind() string {
	if e.TLS {
		return "tls"
	}
	return "transport"
}

// UpstreamHTTPError is a non-success status returned by upstream.
type UpstreamHTTPError struct {
	Host       string
	StatusCode int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.Host, e.StatusCode)
}

// NewTransportError classifies err from an upstream round trip.
func NewTransportError(host string, err error) *UpstreamTransportError {
	return &UpstreamTransportError{Host: host, TLS: isTLSError(err), Err: err}
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}

// HandleError converts an error to the response envelope sent to clients.
func HandleError(err error) *types.ErrorResponse {
	var transportErr *UpstreamTransportError
	if errors.As(err, &transportErr) {
		if transportErr.TLS {
			return types.NewUpstreamError("upstream tls handshake failed", types.CodeUpstreamTLS)
		}
		return types.NewUpstreamError("upstream unreachable", types.CodeUpstreamUnreachable)
	}

	var httpErr *UpstreamHTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= http.StatusInternalServerError {
			return types.NewUpstreamError("upstream server error", types.CodeUpstreamServerError)
		}
		return types.NewRelayedError(httpErr.StatusCode)
	}

	switch {
	case errors.Is(err, ErrAuthorizationRequired):
		return types.NewErrorResponse("Authorization header required", types.ErrorTypeAuthentication, "Authorization", types.CodeAuthorizationRequired)
	case errors.Is(err, ErrUploadLengthRequired):
		return types.NewErrorResponse("request body length must be declared", types.ErrorTypeLengthRequired, "Content-Length", types.CodeUploadLengthRequired)
	case errors.Is(err, ErrMethodNotAllowed):
		return types.NewErrorResponse("method not allowed", types.ErrorTypeMethodNotAllowed, "", "")
	case errors.Is(err, ErrInvalidTarget):
		return types.NewInvalidRequestError("invalid upstream url", "url", types.CodeInvalidTarget)
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}
