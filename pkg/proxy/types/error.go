package types

import "net/http"

// ErrorResponse is the body of every gateway-generated error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Status overrides the status derived from Type when non-zero.
	Status int `json:"-"`
}

// Error type constants.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeAuthentication indicates missing credentials (401).
	ErrorTypeAuthentication = "authentication_error"

	// ErrorTypeNotFound indicates a resource was not found (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeMethodNotAllowed indicates an unsupported method (405).
	ErrorTypeMethodNotAllowed = "method_not_allowed"

	// ErrorTypeLengthRequired indicates an undeclared body length (411).
	ErrorTypeLengthRequired = "length_required"

	// ErrorTypeUpstream indicates an upstream failure (422).
	ErrorTypeUpstream = "upstream_error"

	// ErrorTypeUpstreamClient indicates an upstream 4xx relayed with its status.
	ErrorTypeUpstreamClient = "upstream_client_error"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeServiceUnavailable indicates temporary unavailability (503).
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// Error code constants.
const (
	CodeAuthorizationRequired = "authorization_required"
	CodeUploadLengthRequired  = "upload_length_required"
	CodeInvalidTarget         = "invalid_target"
	CodeUpstreamServerError   = "upstream_server_error"
	CodeUpstreamTLS           = "upstream_tls_handshake"
	CodeUpstreamUnreachable   = "upstream_unreachable"
	CodeStatusUnavailable     = "status_unavailable"
	CodeInternalError         = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates an error response for invalid requests (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewUpstreamError creates the fixed 422 response for upstream failures.
func NewUpstreamError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeUpstream, "", code)
}

// NewRelayedError creates a generic body carrying an upstream 4xx status.
func NewRelayedError(status int) *ErrorResponse {
	resp := NewErrorResponse(http.StatusText(status), ErrorTypeUpstreamClient, "", "")
	resp.Error.Status = status
	return resp
}

// NewServiceUnavailableError creates an error response for temporary unavailability (503).
func NewServiceUnavailableError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "", code)
}

// HTTPStatusCode returns the HTTP status code for the error.
func (e *ErrorDetail) HTTPStatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypeLengthRequired:
		return http.StatusLengthRequired
	case ErrorTypeUpstream:
		return http.StatusUnprocessableEntity
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
