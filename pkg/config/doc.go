// Package config provides configuration management for the naumanni gateway.
//
// Configuration is read from a YAML file, completed with defaults, overlaid
// with environment variables and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("naumanni.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention NAUMANNI_SECTION_FIELD.
// For example:
//
//   - NAUMANNI_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - NAUMANNI_SERVER_WORKERS overrides server.workers
//   - NAUMANNI_STATUS_BACKEND overrides status.backend
//   - NAUMANNI_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defaults.go)
//  2. YAML file
//  3. Environment variables
//  4. Command-line flags (applied by the caller)
//
// There is no process-wide configuration instance. The loaded *Config is
// passed explicitly to every component that needs it.
package config
