package topology

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/server"
	"github.com/naumanni/naumanni-server/pkg/telemetry/logging"
)

// UnassignedTask is the task id of a worker started without a master.
const UnassignedTask = -1

// State is a worker lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateServing
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker serves the gateway on a shared listener and answers control
// requests from the master.
type Worker struct {
	taskID  int
	cfg     *config.ServerConfig
	app     *plugin.App
	srv     *server.Server
	control *PipeTransport

	state atomic.Int32
}

// NewWorker creates a worker. control may be nil when the worker runs
// without a master.
func NewWorker(taskID int, cfg *config.ServerConfig, app *plugin.App, srv *server.Server, control *PipeTransport) *Worker {
	return &Worker{
		taskID:  taskID,
		cfg:     cfg,
		app:     app,
		srv:     srv,
		control: control,
	}
}

// TaskID returns the worker index.
func (w *Worker) TaskID() int { return w.taskID }

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(ctx context.Context, s State) {
	w.state.Store(int32(s))
	slog.DebugContext(ctx, "worker state changed", "state", s.String())
}

// Run serves ln until ctx is cancelled, then drains in-flight work for at
// most the configured grace period. It returns early if the server fails.
func (w *Worker) Run(ctx context.Context, ln net.Listener) error {
	logCtx := logging.WithTaskID(context.WithoutCancel(ctx), strconv.Itoa(w.taskID))
	w.setState(logCtx, StateStarting)

	if w.taskID == 0 || w.taskID == UnassignedTask {
		if _, err := w.app.Bus().EmitContext(logCtx, plugin.EventAfterStartFirstProcess, plugin.Args{}, nil); err != nil {
			slog.ErrorContext(logCtx, "after-start-first-process handler failed", "error", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- w.srv.Serve(ln) }()
	if w.control != nil {
		go w.serveControl(logCtx)
	}

	w.setState(logCtx, StateServing)
	slog.InfoContext(logCtx, "worker serving", "address", ln.Addr().String())

	select {
	case err := <-serveErr:
		w.setState(logCtx, StateStopped)
		return err
	case <-ctx.Done():
	}

	w.setState(logCtx, StateDraining)
	if _, err := w.app.Bus().EmitContext(logCtx, plugin.EventBeforeStop, plugin.Args{}, nil); err != nil {
		slog.ErrorContext(logCtx, "before-stop handler failed", "error", err)
	}

	start := time.Now()
	closed := w.srv.Drain(w.cfg.ShutdownGrace, w.cfg.DrainInterval)
	err := <-serveErr
	w.setState(logCtx, StateStopped)

	slog.InfoContext(logCtx, "worker stopped",
		"drain_duration", time.Since(start),
		"force_closed", closed,
	)
	return err
}

// serveControl answers master requests until the control stream closes.
func (w *Worker) serveControl(ctx context.Context) {
	for {
		frame, err := w.control.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.WarnContext(ctx, "control stream failed", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(frame, &req); err != nil {
			slog.WarnContext(ctx, "ignored malformed control request", "error", err)
			continue
		}

		if err := w.control.Send(w.answer(ctx, req)); err != nil {
			slog.WarnContext(ctx, "failed to answer control request", "request", req.Request, "error", err)
			return
		}
	}
}

func (w *Worker) answer(ctx context.Context, req Request) any {
	switch req.Request {
	case RequestStatus:
		return TakeSnapshot(ctx, w.taskID, w.srv.Activity().Count())
	default:
		slog.DebugContext(ctx, "unknown control request", "request", req.Request)
		return ErrorReply{Error: "unknown request"}
	}
}
