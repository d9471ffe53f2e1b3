// Package daemon implements watch mode: it rebuilds the affected parts of
// the dist tree when sources change and tells browsers to reload.
package daemon

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/events"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/watch"
)

// Rebuild triggers recorded in build history.
const (
	TriggerWatch     = "watch"
	TriggerScheduled = "scheduled"
	TriggerInitial   = "initial"
)

// Daemon owns the event bus and the goroutines of watch mode.
type Daemon struct {
	cfg            *config.Config
	bus            *events.Bus
	hub            *LiveReloadHub
	recorder       metrics.Recorder
	metricsHandler http.Handler
	logger         *slog.Logger
	runnerOpts     []pipeline.Option
	roots          []watch.Root

	serve    bool
	listener net.Listener
	running  atomic.Bool
	ready    chan struct{}
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithServer enables the dev HTTP server.
func WithServer(enabled bool) Option { return func(d *Daemon) { d.serve = enabled } }

// WithListener serves on ln instead of dev.listen. Implies WithServer(true).
func WithListener(ln net.Listener) Option {
	return func(d *Daemon) {
		d.listener = ln
		d.serve = true
	}
}

// WithRecorder sets the metrics recorder; handler, when non-nil, is mounted
// at /metrics on the dev server.
func WithRecorder(rec metrics.Recorder, handler http.Handler) Option {
	return func(d *Daemon) {
		if rec != nil {
			d.recorder = rec
		}
		d.metricsHandler = handler
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRunnerOptions passes options to every pipeline runner the daemon creates.
func WithRunnerOptions(opts ...pipeline.Option) Option {
	return func(d *Daemon) { d.runnerOpts = append(d.runnerOpts, opts...) }
}

// WithRoots overrides the watched directories.
func WithRoots(roots []watch.Root) Option { return func(d *Daemon) { d.roots = roots } }

// New creates a daemon for cfg.
func New(cfg *config.Config, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		bus:      events.NewBus(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.roots == nil {
		d.roots = watch.Roots(cfg)
	}
	d.hub = NewLiveReloadHub(d.recorder)
	return d
}

// Bus returns the daemon's event bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Hub returns the live reload hub.
func (d *Daemon) Hub() *LiveReloadHub { return d.hub }

// Ready is closed once the initial build finished and changes are watched.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Running reports whether a rebuild is in progress.
func (d *Daemon) Running() bool { return d.running.Load() }

// Run performs an initial dev build, then watches and rebuilds until ctx
// ends. Build failures are logged and do not stop the daemon.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.bus.Close()

	var srv *DevServer
	if d.serve {
		var err error
		if srv, err = NewDevServer(d.cfg, d.hub, d.metricsHandler, d.logger); err != nil {
			return err
		}
	}

	d.build(ctx, pipeline.DevPlan(), TriggerInitial)

	quiet, maxDelay := d.cfg.CoalesceWindow()
	coalescer, err := NewRebuildCoalescer(d.bus, RebuildCoalescerConfig{
		QuietWindow:       quiet,
		MaxDelay:          maxDelay,
		CheckBuildRunning: d.running.Load,
	})
	if err != nil {
		return err
	}

	watcher, err := watch.New(d.bus, d.roots, d.logger)
	if err != nil {
		return err
	}

	requests, unsubscribe := events.Subscribe[events.RebuildRequested](d.bus, 8)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	if interval := d.cfg.Watch.FullRebuildInterval; interval > 0 {
		sched, err := NewScheduler(d.logger)
		if err == nil {
			_, err = sched.ScheduleFullRebuild(interval, func() { d.requestFullRebuild(gctx) })
		}
		if err != nil {
			d.logger.Warn("Periodic full rebuild disabled", logfields.Error(err))
		} else {
			sched.Start()
			g.Go(func() error {
				<-gctx.Done()
				return sched.Stop()
			})
		}
	}
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return coalescer.Run(gctx) })
	g.Go(func() error { return d.loop(gctx, requests) })

	if srv != nil {
		g.Go(func() error {
			if d.listener != nil {
				return srv.Serve(gctx, d.listener)
			}
			return srv.ListenAndServe(gctx)
		})
	}

	go func() {
		select {
		case <-coalescer.Ready():
			close(d.ready)
		case <-gctx.Done():
		}
	}()

	d.logger.Info("Watching for changes", logfields.Count(len(d.roots)))
	return g.Wait()
}

func (d *Daemon) loop(ctx context.Context, requests <-chan events.RebuildRequested) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			d.recorder.IncRebuildRequest(req.Cause)
			d.logger.Debug("Rebuild requested",
				slog.Any("scopes", req.Scopes),
				slog.Any("stages", req.Stages),
				logfields.Count(req.Count),
				slog.String("cause", req.Cause))
			if req.ReloadOnly() {
				d.reloadAfterDelay(ctx)
				continue
			}
			trigger := TriggerWatch
			if req.Cause == TriggerScheduled {
				trigger = TriggerScheduled
			}
			d.build(ctx, pipeline.DevPlan().Subset(stageNames(req.Stages)), trigger)
		}
	}
}

// build runs plan, publishes BuildCompleted and triggers a browser reload
// when the build did not fail.
func (d *Daemon) build(ctx context.Context, plan pipeline.Plan, trigger string) {
	d.running.Store(true)
	runner := pipeline.NewRunner(d.cfg, slices.Concat(d.runnerOpts, []pipeline.Option{
		pipeline.WithLogger(d.logger),
		pipeline.WithRecorder(d.recorder),
		pipeline.WithTrigger(trigger),
	})...)
	start := time.Now()
	report, err := runner.Run(ctx, plan)
	d.running.Store(false)

	evt := events.BuildCompleted{
		Plan:     plan.Name,
		Stages:   plan.StageStrings(),
		Duration: time.Since(start),
		Err:      err,
		At:       time.Now(),
	}
	if report != nil {
		evt.BuildID = report.BuildID
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		d.logger.Warn("Rebuild failed, keeping previous output", logfields.Trigger(trigger), logfields.Error(err))
	}
	if perr := d.bus.Publish(ctx, evt); perr != nil && ctx.Err() == nil {
		d.logger.Warn("Failed to publish build completion", logfields.Error(perr))
	}
	if err == nil {
		d.reloadAfterDelay(ctx)
	}
}

func (d *Daemon) reloadAfterDelay(ctx context.Context) {
	if delay := d.cfg.Dev.ReloadDelay; delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
	d.hub.Reload()
	d.logger.Debug("Browser reload sent", logfields.Clients(d.hub.Clients()))
}

func (d *Daemon) requestFullRebuild(ctx context.Context) {
	req := events.RebuildRequested{
		Stages:      pipeline.DevPlan().StageStrings(),
		Count:       1,
		Cause:       TriggerScheduled,
		RequestedAt: time.Now(),
	}
	if err := d.bus.Publish(ctx, req); err != nil && ctx.Err() == nil {
		d.logger.Warn("Failed to request scheduled rebuild", logfields.Error(err))
	}
}

func stageNames(ss []string) []pipeline.StageName {
	out := make([]pipeline.StageName, 0, len(ss))
	for _, s := range ss {
		if n, ok := pipeline.ParseStageName(s); ok {
			out = append(out, n)
		}
	}
	return out
}
