package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
)

// shutdownMargin is added to the worker grace period before the master
// kills workers that have not exited.
const shutdownMargin = 5 * time.Second

// WorkerFactory builds an in-process worker. signal asks the master for a
// fresh status report.
type WorkerFactory func(taskID int, control *PipeTransport, signal func() error) (*Worker, error)

// MasterOptions are the collaborators of a Master.
type MasterOptions struct {
	Config    *config.Config
	Store     statusstore.Store
	Collector *metrics.Collector

	// NewWorker is required in inprocess mode.
	NewWorker WorkerFactory

	// Executable and Args start a worker process; the "worker" command and
	// its task id are appended. Executable defaults to os.Executable.
	Executable string
	Args       []string
}

// Master binds the listener, starts the workers and aggregates their
// status. Workers that exit are logged and not restarted.
type Master struct {
	opts MasterOptions
	cfg  *config.Config

	collect chan struct{}

	mu      sync.Mutex
	workers []*workerHandle
}

type workerHandle struct {
	taskID  int
	control *PipeTransport
	replies chan json.RawMessage

	// reqMu keeps one request outstanding per worker.
	reqMu sync.Mutex

	cmd    *exec.Cmd
	cancel context.CancelFunc

	done  chan struct{}
	err   error
	alive atomic.Bool
}

// NewMaster creates a master.
func NewMaster(opts MasterOptions) (*Master, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("status store is required")
	}
	if Mode(&opts.Config.Server) == config.ModeInProcess && opts.NewWorker == nil {
		return nil, fmt.Errorf("inprocess mode requires a worker factory")
	}
	return &Master{
		opts:    opts,
		cfg:     opts.Config,
		collect: make(chan struct{}, 1),
	}, nil
}

// WorkerCount is the number of workers to start. Debug mode runs one.
func WorkerCount(cfg *config.ServerConfig) int {
	if cfg.Debug {
		return 1
	}
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.NumCPU()
}

// Mode is the effective topology mode. Debug mode runs its worker inside
// the master process.
func Mode(cfg *config.ServerConfig) string {
	if cfg.Debug {
		return config.ModeInProcess
	}
	return cfg.Mode
}

// Run binds the configured address and calls Serve.
func (m *Master) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Server.ListenAddress, err)
	}
	return m.Serve(ctx, ln)
}

// Serve starts the workers on ln and supervises them until ctx is
// cancelled, then stops them and returns. ln is closed on return.
func (m *Master) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	// Workers may signal for status as soon as they serve, before the rest
	// have been started.
	var sigs chan os.Signal
	if StatusSignal != nil {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, StatusSignal)
		defer signal.Stop(sigs)
	}

	count := WorkerCount(&m.cfg.Server)
	mode := Mode(&m.cfg.Server)
	slog.InfoContext(ctx, "starting workers",
		"address", ln.Addr().String(),
		"workers", count,
		"mode", mode,
	)

	var (
		shared  *sharedListener
		lnFile  *os.File
		startFn func(taskID int) (*workerHandle, error)
	)
	switch mode {
	case config.ModeInProcess:
		shared = newSharedListener(ln)
		defer shared.Close()
		startFn = func(taskID int) (*workerHandle, error) {
			return m.startInProcess(taskID, shared.Child())
		}
	default:
		f, err := listenerFile(ln)
		if err != nil {
			return err
		}
		lnFile = f
		defer lnFile.Close()
		startFn = func(taskID int) (*workerHandle, error) {
			return m.startProcess(taskID, lnFile)
		}
	}

	for i := range count {
		taskID := i
		if m.cfg.Server.Debug {
			taskID = UnassignedTask
		}
		h, err := startFn(taskID)
		if err != nil {
			m.stopWorkers()
			return fmt.Errorf("failed to start worker %d: %w", taskID, err)
		}
		m.mu.Lock()
		m.workers = append(m.workers, h)
		m.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	m.supervise(gctx, g, sigs)

	<-gctx.Done()
	slog.InfoContext(ctx, "stopping workers")
	m.stopWorkers()

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// supervise starts the status collectors and one watcher per worker. sigs
// delivers status signals and may be nil.
func (m *Master) supervise(ctx context.Context, g *errgroup.Group, sigs <-chan os.Signal) {
	var running atomic.Int32
	for _, h := range m.snapshotWorkers() {
		running.Add(1)
		g.Go(func() error {
			select {
			case <-h.done:
			case <-ctx.Done():
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			if h.err != nil {
				slog.ErrorContext(ctx, "worker exited", "task_id", h.taskID, "error", h.err)
			} else {
				slog.WarnContext(ctx, "worker exited", "task_id", h.taskID)
			}
			if running.Add(-1) == 0 {
				return fmt.Errorf("all workers exited")
			}
			return nil
		})
	}

	g.Go(func() error {
		m.collectLoop(ctx)
		return nil
	})

	if sigs != nil {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sigs:
					m.Trigger()
				}
			}
		})
	}

	if spec := m.cfg.Status.Schedule; spec != "" {
		c := cron.New()
		if _, err := c.AddFunc(spec, m.Trigger); err != nil {
			slog.ErrorContext(ctx, "invalid status schedule", "schedule", spec, "error", err)
			return
		}
		c.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}
}

// Trigger requests a status collection without waiting for it.
func (m *Master) Trigger() {
	select {
	case m.collect <- struct{}{}:
	default:
	}
}

func (m *Master) collectLoop(ctx context.Context) {
	// Workers may long-poll the store before the first signal arrives.
	m.Trigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.collect:
			if _, err := m.Collect(ctx); err != nil && ctx.Err() == nil {
				slog.WarnContext(ctx, "status collection failed", "error", err)
			}
		}
	}
}

// Collect asks every live worker for a snapshot, adds the master's own and
// persists the report.
func (m *Master) Collect(ctx context.Context) (*statusstore.Report, error) {
	workers := m.snapshotWorkers()
	snaps := make([]statusstore.Snapshot, len(workers))

	var wg sync.WaitGroup
	for i, h := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i] = m.requestStatus(ctx, h)
		}()
	}
	master := TakeSnapshot(ctx, UnassignedTask, 0)
	wg.Wait()

	slices.SortFunc(snaps, func(a, b statusstore.Snapshot) int { return a.TaskID - b.TaskID })
	report := &statusstore.Report{
		Timestamp: statusstore.UnixSeconds(time.Now()),
		Master:    master,
		Workers:   snaps,
	}

	err := statusstore.SaveReport(ctx, m.opts.Store, report)
	m.opts.Collector.RecordCollection(len(workers), err)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "status collected", "workers", len(snaps))
	return report, nil
}

// requestStatus never fails; errors are reported inside the snapshot.
func (m *Master) requestStatus(ctx context.Context, h *workerHandle) statusstore.Snapshot {
	failed := func(err error) statusstore.Snapshot {
		return statusstore.Snapshot{TaskID: h.taskID, Error: err.Error()}
	}
	if !h.alive.Load() {
		return failed(fmt.Errorf("worker exited"))
	}

	frame, err := h.request(ctx, Request{Request: RequestStatus}, m.cfg.Status.CollectTimeout)
	if err != nil {
		return failed(err)
	}

	var snap statusstore.Snapshot
	if err := json.Unmarshal(frame, &snap); err != nil {
		return failed(fmt.Errorf("malformed status reply: %w", err))
	}
	// An error reply carries nothing but the error.
	if snap.PID == 0 && snap.Error != "" {
		return failed(errors.New(snap.Error))
	}
	snap.TaskID = h.taskID
	return snap
}

func (m *Master) snapshotWorkers() []*workerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.workers)
}

func newWorkerHandle(taskID int) *workerHandle {
	h := &workerHandle{
		taskID:  taskID,
		replies: make(chan json.RawMessage, 1),
		done:    make(chan struct{}),
	}
	h.alive.Store(true)
	return h
}

// readReplies forwards worker frames to the pending request.
func (h *workerHandle) readReplies() {
	for {
		frame, err := h.control.Recv()
		if err != nil {
			return
		}
		select {
		case h.replies <- frame:
		default:
			slog.Debug("dropped unsolicited control reply", "task_id", h.taskID)
		}
	}
}

func (h *workerHandle) request(ctx context.Context, req Request, timeout time.Duration) (json.RawMessage, error) {
	h.reqMu.Lock()
	defer h.reqMu.Unlock()

	// Discard a reply that arrived after an earlier request timed out.
	select {
	case <-h.replies:
	default:
	}

	// A busy worker does not read its pipe, so the send is bounded too.
	sent := make(chan error, 1)
	go func() { sent <- h.control.Send(req) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case err := <-sent:
			if err != nil {
				return nil, err
			}
			sent = nil
		case frame := <-h.replies:
			return frame, nil
		case <-timer.C:
			return nil, fmt.Errorf("worker did not answer within %s", timeout)
		case <-h.done:
			return nil, fmt.Errorf("worker exited")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (h *workerHandle) exited(err error) {
	h.err = err
	h.alive.Store(false)
	close(h.done)
}

// startProcess re-executes the binary as a worker. The child inherits the
// listener as fd 3, its request pipe as fd 4 and its reply pipe as fd 5.
func (m *Master) startProcess(taskID int, lnFile *os.File) (*workerHandle, error) {
	exe := m.opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, err
		}
	}

	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	repR, repW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, err
	}

	args := append(slices.Clone(m.opts.Args), "worker", "--task-id", strconv.Itoa(taskID))
	cmd := exec.Command(exe, args...) // #nosec G204 - the executable is this binary
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{lnFile, reqR, repW}

	if err := cmd.Start(); err != nil {
		reqR.Close()
		reqW.Close()
		repR.Close()
		repW.Close()
		return nil, err
	}
	// The child holds its own copies.
	reqR.Close()
	repW.Close()

	h := newWorkerHandle(taskID)
	h.cmd = cmd
	h.control = NewPipeTransport(repR, reqW)
	go h.readReplies()
	go func() {
		err := cmd.Wait()
		reqW.Close()
		repR.Close()
		h.exited(err)
	}()

	slog.Info("worker process started", "task_id", taskID, "pid", cmd.Process.Pid)
	return h, nil
}

// startInProcess runs a worker as goroutines connected by in-memory pipes.
func (m *Master) startInProcess(taskID int, ln net.Listener) (*workerHandle, error) {
	reqR, reqW := io.Pipe()
	repR, repW := io.Pipe()

	w, err := m.opts.NewWorker(taskID, NewPipeTransport(reqR, repW), func() error {
		m.Trigger()
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := newWorkerHandle(taskID)
	h.cancel = cancel
	h.control = NewPipeTransport(repR, reqW)
	go h.readReplies()
	go func() {
		err := w.Run(ctx, ln)
		reqW.Close()
		repW.Close()
		h.exited(err)
	}()

	slog.Info("worker started", "task_id", taskID)
	return h, nil
}

// stopWorkers relays termination to every worker and waits for them, up
// to the grace period plus a margin, before killing what is left.
func (m *Master) stopWorkers() {
	workers := m.snapshotWorkers()
	for _, h := range workers {
		if !h.alive.Load() {
			continue
		}
		switch {
		case h.cmd != nil:
			if err := terminate(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
				slog.Warn("failed to signal worker", "task_id", h.taskID, "error", err)
			}
		case h.cancel != nil:
			h.cancel()
		}
	}

	deadline := time.NewTimer(m.cfg.Server.ShutdownGrace + shutdownMargin)
	defer deadline.Stop()
	for _, h := range workers {
		select {
		case <-h.done:
		case <-deadline.C:
			m.killWorkers(workers)
			return
		}
	}
}

func (m *Master) killWorkers(workers []*workerHandle) {
	for _, h := range workers {
		if !h.alive.Load() || h.cmd == nil {
			continue
		}
		slog.Warn("killing worker that did not stop", "task_id", h.taskID)
		_ = h.cmd.Process.Kill()
	}
}
