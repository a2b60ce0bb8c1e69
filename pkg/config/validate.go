package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateWebSocket(&cfg.WebSocket)...)
	errs = append(errs, validateStatus(&cfg.Status, &cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid address: %v", err)})
	}
	if cfg.Workers < 0 {
		errs = append(errs, FieldError{Field: "server.workers", Message: "workers must be non-negative"})
	}
	if cfg.Mode != ModeProcess && cfg.Mode != ModeInProcess {
		errs = append(errs, FieldError{
			Field:   "server.mode",
			Message: fmt.Sprintf("must be %q or %q", ModeProcess, ModeInProcess),
		})
	}
	if cfg.ShutdownGrace < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_grace", Message: "shutdown grace must be positive"})
	}
	if cfg.DrainInterval <= 0 {
		errs = append(errs, FieldError{Field: "server.drain_interval", Message: "drain interval must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be non-negative"})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "required when TLS is enabled"})
		}
	}
	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError
	if cfg.DialTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.dial_timeout", Message: "must be positive"})
	}
	if cfg.ResponseHeaderTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.response_header_timeout", Message: "must be positive"})
	}
	if cfg.MaxIdleConnsPerHost < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_idle_conns_per_host", Message: "must be non-negative"})
	}
	return errs
}

func validateWebSocket(cfg *WebSocketConfig) []FieldError {
	var errs []FieldError
	if cfg.PingInterval <= 0 {
		errs = append(errs, FieldError{Field: "websocket.ping_interval", Message: "must be positive"})
	}
	if cfg.ReadBufferSize < 0 || cfg.WriteBufferSize < 0 {
		errs = append(errs, FieldError{Field: "websocket.buffer_size", Message: "must be non-negative"})
	}
	return errs
}

func validateStatus(cfg *StatusConfig, server *ServerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendMemory:
		if server.Mode == ModeProcess && !server.Debug {
			errs = append(errs, FieldError{
				Field:   "status.backend",
				Message: "memory backend is not shared between worker processes; use sqlite or redis, or server.mode inprocess",
			})
		}
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "status.sqlite.path", Message: "path is required"})
		}
	case BackendRedis:
		u, err := url.Parse(cfg.Redis.URL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, FieldError{Field: "status.redis.url", Message: "must be a redis:// or rediss:// URL"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "status.backend",
			Message: fmt.Sprintf("unsupported backend %q", cfg.Backend),
		})
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "status.poll_interval", Message: "must be positive"})
	}
	if cfg.WaitTimeout <= 0 {
		errs = append(errs, FieldError{Field: "status.wait_timeout", Message: "must be positive"})
	}
	if cfg.CollectTimeout <= 0 {
		errs = append(errs, FieldError{Field: "status.collect_timeout", Message: "must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
	}
	return errs
}
