package topology

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/server"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Mode = config.ModeInProcess
	cfg.Server.Workers = 2
	cfg.Server.ShutdownGrace = time.Second
	cfg.Server.DrainInterval = 10 * time.Millisecond
	cfg.Status.Backend = config.BackendMemory
	cfg.Status.Schedule = ""
	cfg.Status.CollectTimeout = 2 * time.Second
	return cfg
}

// buildWorker wires a worker the way the serve command does, without
// telemetry.
func buildWorker(cfg *config.Config, store statusstore.Store, taskID int, control *PipeTransport, signal func() error) (*Worker, *plugin.App, error) {
	app, err := server.NewPluginApp(cfg.Plugins, nil)
	if err != nil {
		return nil, nil, err
	}
	pipeline := proxy.NewPipeline(apischema.NewMastodonRegistry(mastodon.NewEntities()), app.Bus(), nil, nil)
	srv := server.New(server.Options{
		Config:       cfg,
		App:          app,
		Pipeline:     pipeline,
		Store:        store,
		SignalStatus: signal,
	})
	return NewWorker(taskID, &cfg.Server, app, srv, control), app, nil
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func TestWorker_ControlRequests(t *testing.T) {
	reqR, reqW := io.Pipe()
	repR, repW := io.Pipe()
	w, _, err := buildWorker(testConfig(), statusstore.NewMemory(), 3, NewPipeTransport(reqR, repW), nil)
	if err != nil {
		t.Fatalf("buildWorker() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, listen(t)) }()

	master := NewPipeTransport(repR, reqW)

	if err := master.Send(Request{Request: RequestStatus}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	frame, err := master.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	var snap statusstore.Snapshot
	if err := json.Unmarshal(frame, &snap); err != nil {
		t.Fatalf("status reply %s: %v", frame, err)
	}
	if snap.TaskID != 3 || int(snap.PID) != os.Getpid() {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Goroutines == 0 || snap.CollectedAt == 0 {
		t.Errorf("snapshot missing runtime fields: %+v", snap)
	}

	if err := master.Send(Request{Request: "restart"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	frame, err = master.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(frame) != `{"error":"unknown request"}` {
		t.Errorf("unknown request reply = %s", frame)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	if w.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", w.State())
	}
	reqW.Close()
}

func TestWorker_LifecycleEvents(t *testing.T) {
	tests := []struct {
		name       string
		taskID     int
		wantFirst  int
		wantBefore int
	}{
		{"first worker", 0, 1, 1},
		{"unassigned worker", UnassignedTask, 1, 1},
		{"other worker", 2, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, app, err := buildWorker(testConfig(), statusstore.NewMemory(), tt.taskID, nil, nil)
			if err != nil {
				t.Fatalf("buildWorker() error = %v", err)
			}

			var mu sync.Mutex
			counts := map[string]int{}
			record := func(event string) {
				app.Bus().Subscribe("test", event, plugin.HandlerFunc(func(context.Context, plugin.Args) (any, error) {
					mu.Lock()
					counts[event]++
					mu.Unlock()
					return nil, nil
				}))
			}
			record(plugin.EventAfterStartFirstProcess)
			record(plugin.EventBeforeStop)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx, listen(t)) }()

			deadline := time.Now().Add(2 * time.Second)
			for w.State() != StateServing && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if counts[plugin.EventAfterStartFirstProcess] != tt.wantFirst {
				t.Errorf("after-start-first-process emitted %d times, want %d", counts[plugin.EventAfterStartFirstProcess], tt.wantFirst)
			}
			if counts[plugin.EventBeforeStop] != tt.wantBefore {
				t.Errorf("before-stop emitted %d times, want %d", counts[plugin.EventBeforeStop], tt.wantBefore)
			}
		})
	}
}

func TestTakeSnapshot(t *testing.T) {
	snap := TakeSnapshot(context.Background(), 7, 4)

	if snap.TaskID != 7 || snap.ActiveHandlers != 4 {
		t.Errorf("snapshot = %+v", snap)
	}
	if int(snap.PID) != os.Getpid() {
		t.Errorf("PID = %d, want %d", snap.PID, os.Getpid())
	}
	if runtime.GOOS == "linux" && snap.Error == "" {
		if snap.Memory.RSS == 0 || snap.WatchedFDs == 0 {
			t.Errorf("linux snapshot missing process fields: %+v", snap)
		}
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateStarting: "starting",
		StateServing:  "serving",
		StateDraining: "draining",
		StateStopped:  "stopped",
		State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
