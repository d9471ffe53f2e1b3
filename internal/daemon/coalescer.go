package daemon

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/events"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

type RebuildCoalescerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// CheckBuildRunning reports whether a rebuild is currently running.
	// When true, the coalescer holds the request back and emits exactly one
	// follow-up once the running build finished.
	CheckBuildRunning func() bool

	// PollInterval controls how often completion of a running build is
	// checked while a follow-up is pending.
	PollInterval time.Duration
}

// RebuildCoalescer turns bursts of SourceChanged events into one
// RebuildRequested:
//   - quiet window debounce
//   - max delay (cannot postpone indefinitely)
//   - if a rebuild is already running, queue exactly one follow-up
//
// It is safe to run as a single goroutine.
type RebuildCoalescer struct {
	bus *events.Bus
	cfg RebuildCoalescerConfig

	mu        sync.Mutex
	readyOnce sync.Once
	ready     chan struct{}

	pending         bool
	pendingAfterRun bool
	pollingAfterRun bool
	scopes          map[events.Scope]struct{}
	changeCount     int
}

func NewRebuildCoalescer(bus *events.Bus, cfg RebuildCoalescerConfig) (*RebuildCoalescer, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	if cfg.CheckBuildRunning == nil {
		cfg.CheckBuildRunning = func() bool { return false }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &RebuildCoalescer{
		bus:    bus,
		cfg:    cfg,
		ready:  make(chan struct{}),
		scopes: make(map[events.Scope]struct{}),
	}, nil
}

// Ready is closed once Run has subscribed to events.
func (c *RebuildCoalescer) Ready() <-chan struct{} {
	return c.ready
}

func (c *RebuildCoalescer) Run(ctx context.Context) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}

	changes, unsubscribe := events.Subscribe[events.SourceChanged](c.bus, 256)
	defer unsubscribe()

	c.readyOnce.Do(func() { close(c.ready) })

	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	pollTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()
	defer pollTimer.Stop()

	var quietC, maxC, pollC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if c.onChange(change) {
				resetTimer(maxTimer, c.cfg.MaxDelay)
				maxC = maxTimer.C
			}
			resetTimer(quietTimer, c.cfg.QuietWindow)
			quietC = quietTimer.C

		case <-quietC:
			if c.tryEmit(ctx, "quiet") {
				quietC, maxC = nil, nil
			}

		case <-maxC:
			if c.tryEmit(ctx, "max_delay") {
				quietC, maxC = nil, nil
			}

		case <-pollC:
			if c.tryEmitAfterRunning(ctx) {
				pollC, quietC, maxC = nil, nil, nil
				continue
			}
			resetTimer(pollTimer, c.cfg.PollInterval)
			pollC = pollTimer.C
		}

		if c.shouldPollAfterRun() && pollC == nil {
			resetTimer(pollTimer, c.cfg.PollInterval)
			pollC = pollTimer.C
		}
	}
}

// onChange records a change and reports whether it opened a new burst.
func (c *RebuildCoalescer) onChange(change events.SourceChanged) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	first := !c.pending
	if first {
		c.pending = true
		c.changeCount = 0
	}
	c.scopes[change.Scope] = struct{}{}
	c.changeCount++
	return first
}

func (c *RebuildCoalescer) shouldPollAfterRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingAfterRun && !c.pollingAfterRun
}

func (c *RebuildCoalescer) tryEmit(ctx context.Context, cause string) bool {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return true
	}
	if c.cfg.CheckBuildRunning() {
		c.pendingAfterRun = true
		c.mu.Unlock()
		return false
	}

	scopes := sortedScopes(c.scopes)
	count := c.changeCount
	c.pending = false
	c.pendingAfterRun = false
	c.pollingAfterRun = false
	c.scopes = make(map[events.Scope]struct{})
	c.changeCount = 0
	c.mu.Unlock()

	evt := events.RebuildRequested{
		Scopes:      scopes,
		Stages:      stageStrings(StagesFor(scopes)),
		Count:       count,
		Cause:       cause,
		RequestedAt: time.Now(),
	}
	_ = c.bus.Publish(ctx, evt)
	return true
}

func (c *RebuildCoalescer) tryEmitAfterRunning(ctx context.Context) bool {
	c.mu.Lock()
	if !c.pendingAfterRun {
		c.mu.Unlock()
		return true
	}
	c.pollingAfterRun = true
	c.mu.Unlock()

	if c.cfg.CheckBuildRunning() {
		return false
	}
	return c.tryEmit(ctx, "after_running")
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
