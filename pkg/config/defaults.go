package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress     = "0.0.0.0:8888"
	DefaultMode              = ModeProcess
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxHeaderBytes    = 1048576 // 1MB
	DefaultShutdownGrace     = 10 * time.Second
	DefaultDrainInterval     = time.Second

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Upstream defaults
	DefaultUpstreamDialTimeout           = 10 * time.Second
	DefaultUpstreamTLSHandshakeTimeout   = 10 * time.Second
	DefaultUpstreamResponseHeaderTimeout = 60 * time.Second
	DefaultUpstreamMaxIdleConnsPerHost   = 16

	// WebSocket defaults
	DefaultWebSocketPingInterval     = 3 * time.Second
	DefaultWebSocketHandshakeTimeout = 10 * time.Second
	DefaultWebSocketWriteTimeout     = 10 * time.Second
	DefaultWebSocketBufferSize       = 4096

	// Status defaults
	DefaultStatusBackend        = BackendSQLite
	DefaultStatusSQLitePath     = "data/status.db"
	DefaultStatusBusyTimeout    = 5 * time.Second
	DefaultStatusRedisURL       = "redis://127.0.0.1:6379/0"
	DefaultStatusRedisTimeout   = 10 * time.Second
	DefaultStatusSchedule       = "@every 1m"
	DefaultStatusCollectTimeout = 2 * time.Second
	DefaultStatusPollInterval   = 500 * time.Millisecond
	DefaultStatusWaitTimeout    = 10 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "naumanni"
	DefaultMetricsSubsystem   = "gateway"
	DefaultTracingEnabled     = false
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "naumanni"
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultEnabledPlugins is the default filter-chain order.
var DefaultEnabledPlugins = []string{"mute", "annotate"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.CORS.Enabled = DefaultCORSEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Plugins.Enabled = append([]string(nil), DefaultEnabledPlugins...)
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default. Boolean
// fields whose default is true are set by Default, since false cannot be
// told apart from unset here.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultMode
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.Server.DrainInterval == 0 {
		cfg.Server.DrainInterval = DefaultDrainInterval
	}

	// CORS defaults
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"}
	}
	if len(cfg.Server.CORS.ExposedHeaders) == 0 {
		cfg.Server.CORS.ExposedHeaders = []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Upstream defaults
	if cfg.Upstream.DialTimeout == 0 {
		cfg.Upstream.DialTimeout = DefaultUpstreamDialTimeout
	}
	if cfg.Upstream.TLSHandshakeTimeout == 0 {
		cfg.Upstream.TLSHandshakeTimeout = DefaultUpstreamTLSHandshakeTimeout
	}
	if cfg.Upstream.ResponseHeaderTimeout == 0 {
		cfg.Upstream.ResponseHeaderTimeout = DefaultUpstreamResponseHeaderTimeout
	}
	if cfg.Upstream.MaxIdleConnsPerHost == 0 {
		cfg.Upstream.MaxIdleConnsPerHost = DefaultUpstreamMaxIdleConnsPerHost
	}

	// WebSocket defaults
	if cfg.WebSocket.PingInterval == 0 {
		cfg.WebSocket.PingInterval = DefaultWebSocketPingInterval
	}
	if cfg.WebSocket.HandshakeTimeout == 0 {
		cfg.WebSocket.HandshakeTimeout = DefaultWebSocketHandshakeTimeout
	}
	if cfg.WebSocket.WriteTimeout == 0 {
		cfg.WebSocket.WriteTimeout = DefaultWebSocketWriteTimeout
	}
	if cfg.WebSocket.ReadBufferSize == 0 {
		cfg.WebSocket.ReadBufferSize = DefaultWebSocketBufferSize
	}
	if cfg.WebSocket.WriteBufferSize == 0 {
		cfg.WebSocket.WriteBufferSize = DefaultWebSocketBufferSize
	}

	// Status defaults
	if cfg.Status.Backend == "" {
		cfg.Status.Backend = DefaultStatusBackend
	}
	if cfg.Status.SQLite.Path == "" {
		cfg.Status.SQLite.Path = DefaultStatusSQLitePath
	}
	if cfg.Status.SQLite.BusyTimeout == 0 {
		cfg.Status.SQLite.BusyTimeout = DefaultStatusBusyTimeout
	}
	if cfg.Status.Redis.URL == "" {
		cfg.Status.Redis.URL = DefaultStatusRedisURL
	}
	if cfg.Status.Redis.ConnectTimeout == 0 {
		cfg.Status.Redis.ConnectTimeout = DefaultStatusRedisTimeout
	}
	if cfg.Status.CollectTimeout == 0 {
		cfg.Status.CollectTimeout = DefaultStatusCollectTimeout
	}
	if cfg.Status.PollInterval == 0 {
		cfg.Status.PollInterval = DefaultStatusPollInterval
	}
	if cfg.Status.WaitTimeout == 0 {
		cfg.Status.WaitTimeout = DefaultStatusWaitTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
