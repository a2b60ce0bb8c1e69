package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/naumanni/naumanni-server/pkg/cli"
	"github.com/naumanni/naumanni-server/pkg/topology"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway master and its workers",
	Long: `Start the gateway.

The master binds server.listen_address, starts server.workers workers (one
per CPU when 0) and supervises them. SIGTERM or SIGINT drains the workers;
SIGUSR1 refreshes the status report.

Examples:
  # Start with naumanni.yaml, or defaults when it does not exist
  naumanni serve

  # Workers as goroutines instead of processes
  NAUMANNI_SERVER_MODE=inprocess naumanni serve

  # One in-process worker, debug logging
  naumanni serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	deps, err := openProcessDeps(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer deps.Close()

	master, err := topology.NewMaster(topology.MasterOptions{
		Config:    cfg,
		Store:     deps.store,
		Collector: deps.collector,
		NewWorker: func(taskID int, control *topology.PipeTransport, signal func() error) (*topology.Worker, error) {
			return deps.newWorker(ctx, taskID, control, signal)
		},
		Args: workerArgs(),
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	slog.Info("starting naumanni",
		"version", Version,
		"config", cfgFile,
		"mode", topology.Mode(&cfg.Server),
		"workers", topology.WorkerCount(&cfg.Server),
	)
	if err := master.Run(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "naumanni stopped")
	return nil
}
