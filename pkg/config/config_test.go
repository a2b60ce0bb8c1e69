package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "naumanni.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if !cfg.Server.CORS.Enabled || !cfg.Telemetry.Metrics.Enabled {
		t.Error("boolean defaults not applied")
	}
	if cfg.WebSocket.PingInterval != 3*time.Second {
		t.Errorf("PingInterval = %v, want 3s", cfg.WebSocket.PingInterval)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: 127.0.0.1:9000
  workers: 2
  mode: inprocess
status:
  backend: memory
telemetry:
  metrics:
    enabled: false
plugins:
  enabled: [annotate]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:9000" || cfg.Server.Workers != 2 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should be disabled by the file")
	}
	if cfg.Server.CORS.MaxAge != DefaultCORSMaxAge {
		t.Errorf("CORS.MaxAge = %d, want default", cfg.Server.CORS.MaxAge)
	}
	if len(cfg.Plugins.Enabled) != 1 || cfg.Plugins.Enabled[0] != "annotate" {
		t.Errorf("Plugins.Enabled = %v", cfg.Plugins.Enabled)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Run("env wins over file", func(t *testing.T) {
		path := writeConfig(t, "server:\n  workers: 2\n")
		t.Setenv("NAUMANNI_SERVER_WORKERS", "6")
		t.Setenv("NAUMANNI_PLUGINS_ENABLED", "annotate, mute")

		cfg, err := LoadConfigWithEnvOverrides(path, false)
		if err != nil {
			t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
		}
		if cfg.Server.Workers != 6 {
			t.Errorf("Workers = %d, want 6", cfg.Server.Workers)
		}
		if strings.Join(cfg.Plugins.Enabled, ",") != "annotate,mute" {
			t.Errorf("Plugins.Enabled = %v", cfg.Plugins.Enabled)
		}
	})

	t.Run("optional missing file uses defaults", func(t *testing.T) {
		cfg, err := LoadConfigWithEnvOverrides(filepath.Join(t.TempDir(), "absent.yaml"), true)
		if err != nil {
			t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
		}
		if cfg.Server.Mode != ModeProcess {
			t.Errorf("Mode = %q", cfg.Server.Mode)
		}
	})

	t.Run("required missing file fails", func(t *testing.T) {
		if _, err := LoadConfigWithEnvOverrides(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad mode", func(c *Config) { c.Server.Mode = "threads" }, "server.mode"},
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "nope" }, "server.listen_address"},
		{"negative workers", func(c *Config) { c.Server.Workers = -1 }, "server.workers"},
		{"memory backend in process mode", func(c *Config) { c.Status.Backend = BackendMemory }, "status.backend"},
		{"unknown backend", func(c *Config) { c.Status.Backend = "etcd" }, "status.backend"},
		{"bad redis url", func(c *Config) { c.Status.Backend = BackendRedis; c.Status.Redis.URL = "http://x" }, "status.redis.url"},
		{"tls without cert", func(c *Config) { c.Server.TLS.Enabled = true }, "server.tls.cert_file"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "loud" }, "telemetry.logging.level"},
		{"bad sample ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.field, verr.Errors)
			}
		})
	}

	t.Run("memory backend allowed in inprocess mode", func(t *testing.T) {
		cfg := Default()
		cfg.Status.Backend = BackendMemory
		cfg.Server.Mode = ModeInProcess
		if err := Validate(cfg); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}
