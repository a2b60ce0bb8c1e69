package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields absent from the file keep their defaults. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	// Explicit zero values in the file fall back to defaults.
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. When optional is true a missing file is
// not an error and the defaults are used instead.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string, optional bool) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format NAUMANNI_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("NAUMANNI_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envInt("NAUMANNI_SERVER_WORKERS", &cfg.Server.Workers)
	envString("NAUMANNI_SERVER_MODE", &cfg.Server.Mode)
	envBool("NAUMANNI_SERVER_DEBUG", &cfg.Server.Debug)
	envDuration("NAUMANNI_SERVER_SHUTDOWN_GRACE", &cfg.Server.ShutdownGrace)
	envDuration("NAUMANNI_SERVER_DRAIN_INTERVAL", &cfg.Server.DrainInterval)
	envBool("NAUMANNI_SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("NAUMANNI_SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("NAUMANNI_SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)

	// Upstream overrides
	envDuration("NAUMANNI_UPSTREAM_DIAL_TIMEOUT", &cfg.Upstream.DialTimeout)
	envDuration("NAUMANNI_UPSTREAM_RESPONSE_HEADER_TIMEOUT", &cfg.Upstream.ResponseHeaderTimeout)
	envBool("NAUMANNI_UPSTREAM_INSECURE_SKIP_VERIFY", &cfg.Upstream.InsecureSkipVerify)

	// WebSocket overrides
	envDuration("NAUMANNI_WEBSOCKET_PING_INTERVAL", &cfg.WebSocket.PingInterval)

	// Status overrides
	envString("NAUMANNI_STATUS_BACKEND", &cfg.Status.Backend)
	envString("NAUMANNI_STATUS_SQLITE_PATH", &cfg.Status.SQLite.Path)
	envString("NAUMANNI_STATUS_REDIS_URL", &cfg.Status.Redis.URL)
	envString("NAUMANNI_STATUS_SCHEDULE", &cfg.Status.Schedule)

	// Plugin overrides
	if val := os.Getenv("NAUMANNI_PLUGINS_ENABLED"); val != "" {
		cfg.Plugins.Enabled = splitList(val)
	}
	envString("NAUMANNI_PLUGINS_MUTE_RULES_FILE", &cfg.Plugins.Mute.RulesFile)

	// Telemetry overrides
	envString("NAUMANNI_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("NAUMANNI_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("NAUMANNI_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("NAUMANNI_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("NAUMANNI_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("NAUMANNI_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("NAUMANNI_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
