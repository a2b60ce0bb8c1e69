package topology

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
)

// File descriptors a worker process inherits from the master.
const (
	ListenerFD     = 3
	ControlInputFD = 4
	ControlOutFD   = 5
)

// InheritedListener returns the listener passed by the master.
func InheritedListener() (net.Listener, error) {
	f := os.NewFile(ListenerFD, "listener")
	if f == nil {
		return nil, fmt.Errorf("listener fd %d is not open", ListenerFD)
	}
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("failed to use inherited listener: %w", err)
	}
	return ln, nil
}

// InheritedControl returns the control transport passed by the master.
func InheritedControl() (*PipeTransport, error) {
	in := os.NewFile(ControlInputFD, "control-in")
	out := os.NewFile(ControlOutFD, "control-out")
	if in == nil || out == nil {
		return nil, fmt.Errorf("control fds %d/%d are not open", ControlInputFD, ControlOutFD)
	}
	return NewPipeTransport(in, out), nil
}

type filer interface {
	File() (*os.File, error)
}

// listenerFile duplicates the descriptor behind ln for a child process.
func listenerFile(ln net.Listener) (*os.File, error) {
	f, ok := ln.(filer)
	if !ok {
		return nil, fmt.Errorf("listener %T cannot be shared with worker processes", ln)
	}
	return f.File()
}

// sharedListener fans one accept loop out to several in-process servers.
// Closing a child stops only that child; the parent listener is closed by
// Close.
type sharedListener struct {
	ln    net.Listener
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newSharedListener(ln net.Listener) *sharedListener {
	s := &sharedListener{
		ln:    ln,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
	go s.acceptLoop()
	return s
}

func (s *sharedListener) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Warn("accept failed", "error", err)
			}
			s.Close()
			return
		}
		select {
		case s.conns <- conn:
		case <-s.done:
			_ = conn.Close()
			return
		}
	}
}

// Child returns a listener that receives a share of the accepted
// connections.
func (s *sharedListener) Child() net.Listener {
	return &childListener{parent: s, closed: make(chan struct{})}
}

func (s *sharedListener) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ln.Close()
	})
	return err
}

type childListener struct {
	parent *sharedListener
	closed chan struct{}
	once   sync.Once
}

func (c *childListener) Accept() (net.Conn, error) {
	select {
	case conn := <-c.parent.conns:
		return conn, nil
	case <-c.closed:
		return nil, net.ErrClosed
	case <-c.parent.done:
		return nil, net.ErrClosed
	}
}

func (c *childListener) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *childListener) Addr() net.Addr {
	return c.parent.ln.Addr()
}
