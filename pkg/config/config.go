package config

import "time"

// Config is the root configuration structure of the gateway.
type Config struct {
	// Server contains the listener, worker topology and HTTP server settings.
	Server ServerConfig `yaml:"server"`

	// Upstream contains settings for outbound requests to the Mastodon API.
	Upstream UpstreamConfig `yaml:"upstream"`

	// WebSocket contains settings for the streaming proxy.
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Status contains the status snapshot store and collection settings.
	Status StatusConfig `yaml:"status"`

	// Plugins selects the built-in plugins and their options.
	Plugins PluginsConfig `yaml:"plugins"`

	// Telemetry contains logging, metrics and tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Worker topology modes.
const (
	// ModeProcess runs every worker as a separate OS process sharing the
	// listening socket.
	ModeProcess = "process"

	// ModeInProcess runs every worker as a goroutine group inside the
	// master process.
	ModeInProcess = "inprocess"
)

// ServerConfig contains configuration for the HTTP server and worker topology.
type ServerConfig struct {
	// ListenAddress is the address and port to bind.
	// Default: "0.0.0.0:8888"
	ListenAddress string `yaml:"listen_address"`

	// Workers is the number of worker processes. 0 means one per CPU.
	// Default: 0
	Workers int `yaml:"workers"`

	// Mode is the worker topology mode, "process" or "inprocess".
	// Default: "process"
	Mode string `yaml:"mode"`

	// Debug runs a single in-process worker and enables debug logging.
	Debug bool `yaml:"debug"`

	// ReadHeaderTimeout bounds reading request headers. Request bodies are
	// streamed upstream and are not bounded.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownGrace is how long a draining worker waits for in-flight
	// requests and streams before closing them.
	// Default: 10s
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// DrainInterval is how often a draining worker re-checks its activity.
	// Default: 1s
	DrainInterval time.Duration `yaml:"drain_interval"`

	// TLS enables HTTPS on the listener.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains listener TLS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CORSConfig contains Cross-Origin Resource Sharing configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are added.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. Use ["*"] to allow all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed methods for preflight requests.
	// Default: ["GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers for preflight requests.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders lists response headers visible to browsers.
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls Access-Control-Allow-Credentials.
	AllowCredentials bool `yaml:"allow_credentials"`
}

// UpstreamConfig contains outbound HTTP client settings.
type UpstreamConfig struct {
	// DialTimeout bounds TCP connection setup.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// TLSHandshakeTimeout bounds the TLS handshake.
	// Default: 10s
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written.
	// Default: 60s
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`

	// MaxIdleConnsPerHost bounds pooled connections per upstream instance.
	// Default: 16
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// InsecureSkipVerify disables upstream certificate checks. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// WebSocketConfig contains streaming proxy settings.
type WebSocketConfig struct {
	// PingInterval is the keep-alive ping period on both legs.
	// Default: 3s
	PingInterval time.Duration `yaml:"ping_interval"`

	// HandshakeTimeout bounds the upstream WebSocket handshake.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// WriteTimeout bounds a single frame write.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ReadBufferSize and WriteBufferSize size the connection buffers.
	// Default: 4096
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
}

// Status store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// StatusConfig contains status snapshot settings.
type StatusConfig struct {
	// Backend selects the store: "memory", "sqlite" or "redis". The memory
	// backend is only visible to one process and requires inprocess mode.
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis contains Redis backend settings.
	Redis RedisConfig `yaml:"redis"`

	// Schedule is a cron expression for periodic collection. Empty disables
	// it; collection still happens on demand.
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`

	// CollectTimeout bounds how long the master waits for worker replies.
	// Default: 2s
	CollectTimeout time.Duration `yaml:"collect_timeout"`

	// PollInterval is how often the status endpoint re-reads the store.
	// Default: 500ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// WaitTimeout bounds the status endpoint long-poll.
	// Default: 10s
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// SQLiteConfig contains SQLite backend settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/status.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig contains Redis backend settings.
type RedisConfig struct {
	// URL is a redis:// connection URL.
	// Default: "redis://127.0.0.1:6379/0"
	URL string `yaml:"url"`

	// ConnectTimeout bounds the startup connection retries.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// PluginsConfig selects built-in plugins.
type PluginsConfig struct {
	// Enabled lists plugin ids to install, in filter-chain order.
	// Default: ["mute", "annotate"]
	Enabled []string `yaml:"enabled"`

	// Mute contains the mute plugin options.
	Mute MuteConfig `yaml:"mute"`
}

// MuteConfig contains mute plugin options.
type MuteConfig struct {
	// RulesFile is the YAML rule file. Empty means no rules.
	RulesFile string `yaml:"rules_file"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "naumanni"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for proxied requests (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "naumanni"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds span export calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
