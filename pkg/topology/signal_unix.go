//go:build unix

package topology

import (
	"os"
	"os/signal"
	"syscall"
)

// StatusSignal asks the master to collect a fresh status report.
var StatusSignal os.Signal = syscall.SIGUSR1

// SignalMaster sends StatusSignal to the parent process.
func SignalMaster() error {
	return syscall.Kill(os.Getppid(), syscall.SIGUSR1)
}

// IgnoreStatusSignal keeps a worker alive when StatusSignal reaches its
// process group.
func IgnoreStatusSignal() {
	signal.Ignore(syscall.SIGUSR1)
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
