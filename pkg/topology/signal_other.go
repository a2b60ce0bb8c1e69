//go:build !unix

package topology

import (
	"errors"
	"os"
)

// StatusSignal is nil where the platform has no user signals; status is
// then collected on schedule only.
var StatusSignal os.Signal

// SignalMaster is not supported on this platform.
func SignalMaster() error {
	return errors.New("status signal is not supported on this platform")
}

// IgnoreStatusSignal does nothing on this platform.
func IgnoreStatusSignal() {}

func terminate(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
