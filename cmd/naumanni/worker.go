package main

import (
	"github.com/spf13/cobra"

	"github.com/naumanni/naumanni-server/pkg/cli"
	"github.com/naumanni/naumanni-server/pkg/topology"
)

var workerFlags struct {
	taskID int
}

// workerCmd is started by the master with the listener and control pipes
// as inherited file descriptors.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one gateway worker (started by serve)",
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().IntVar(&workerFlags.taskID, "task-id", topology.UnassignedTask, "worker index assigned by the master")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	topology.IgnoreStatusSignal()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	ln, err := topology.InheritedListener()
	if err != nil {
		return cli.NewCommandError("worker", err)
	}
	control, err := topology.InheritedControl()
	if err != nil {
		return cli.NewCommandError("worker", err)
	}

	deps, err := openProcessDeps(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("worker", err)
	}
	defer deps.Close()

	w, err := deps.newWorker(ctx, workerFlags.taskID, control, topology.SignalMaster)
	if err != nil {
		return cli.NewCommandError("worker", err)
	}
	if err := w.Run(ctx, ln); err != nil {
		return cli.NewCommandError("worker", err)
	}
	return nil
}
