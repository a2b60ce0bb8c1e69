package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/server"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
	"github.com/naumanni/naumanni-server/pkg/telemetry/tracing"
	"github.com/naumanni/naumanni-server/pkg/topology"
)

// processDeps are shared by every worker running in one OS process.
type processDeps struct {
	cfg       *config.Config
	store     statusstore.Store
	collector *metrics.Collector
	tracer    *tracing.Tracer
}

func openProcessDeps(ctx context.Context, cfg *config.Config) (*processDeps, error) {
	store, err := statusstore.New(ctx, cfg.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to open status store: %w", err)
	}
	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return &processDeps{
		cfg:       cfg,
		store:     store,
		collector: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		tracer:    tracer,
	}, nil
}

func (d *processDeps) Close() {
	if err := d.tracer.Shutdown(context.Background()); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
	if err := d.store.Close(); err != nil {
		slog.Warn("status store close failed", "error", err)
	}
}

// newWorker builds one worker: its plugins, filter pipeline and HTTP
// server. Plugins run until ctx is cancelled.
func (d *processDeps) newWorker(ctx context.Context, taskID int, control *topology.PipeTransport, signal func() error) (*topology.Worker, error) {
	app, err := server.NewPluginApp(d.cfg.Plugins, slog.Default().With("component", "plugins"))
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	registry := apischema.NewMastodonRegistry(mastodon.NewEntities())
	pipeline := proxy.NewPipeline(registry, app.Bus(), d.collector, d.tracer)
	srv := server.New(server.Options{
		Config:       d.cfg,
		App:          app,
		Pipeline:     pipeline,
		Store:        d.store,
		Collector:    d.collector,
		Tracer:       d.tracer,
		Build:        buildInfo(),
		SignalStatus: signal,
	})
	return topology.NewWorker(taskID, &d.cfg.Server, app, srv, control), nil
}
