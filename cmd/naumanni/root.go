package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/naumanni/naumanni-server/pkg/cli"
	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "naumanni",
	Short: "naumanni - filtering gateway for the Mastodon API",
	Long: `naumanni is an authenticating reverse proxy for Mastodon instances.

Clients call /proxy/<upstream-url> and /ws/<upstream-url> instead of the
instance itself. Responses are normalized, passed through the enabled
plugins (muting, annotation) and re-assembled before they are returned.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "naumanni.yaml", "config file path (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "run one in-process worker with debug logging")
}

// loadConfig reads the config file, applies flag overrides and installs
// the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile, true)
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}

	if debug {
		cfg.Server.Debug = true
	}
	if cfg.Server.Debug {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cli.WrapConfigError(err)
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return cfg, nil
}

// workerArgs are the global flags a worker process is started with.
func workerArgs() []string {
	args := []string{"--config", cfgFile}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	return args
}
