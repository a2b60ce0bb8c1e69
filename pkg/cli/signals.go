package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals end the serve and worker commands.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context that is cancelled on the first
// shutdown signal. Later signals are absorbed until stop is called.
func SetupSignalHandler(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals...)
}
