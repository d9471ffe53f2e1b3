package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/events"
)

func startCoalescer(t *testing.T, bus *events.Bus, cfg RebuildCoalescerConfig) {
	t.Helper()
	c, err := NewRebuildCoalescer(bus, cfg)
	require.NoError(t, err)
	go func() { _ = c.Run(t.Context()) }()
	select {
	case <-c.Ready():
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for coalescer ready")
	}
}

func change(scope events.Scope, path string) events.SourceChanged {
	return events.SourceChanged{Scope: scope, Path: path, Op: events.OpWrite, At: time.Now()}
}

func TestRebuildCoalescer_BurstCoalescesToSingleRequest(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	requests, unsub := events.Subscribe[events.RebuildRequested](bus, 10)
	defer unsub()

	startCoalescer(t, bus, RebuildCoalescerConfig{
		QuietWindow: 25 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	})

	require.NoError(t, bus.Publish(context.Background(), change(events.ScopeStyles, "a.scss")))
	require.NoError(t, bus.Publish(context.Background(), change(events.ScopeScripts, "a.js")))
	require.NoError(t, bus.Publish(context.Background(), change(events.ScopeStyles, "b.scss")))
	require.NoError(t, bus.Publish(context.Background(), change(events.ScopeVendor, "lib.js")))

	select {
	case got := <-requests:
		require.Equal(t, 4, got.Count)
		require.Equal(t, "quiet", got.Cause)
		require.Equal(t, []events.Scope{events.ScopeScripts, events.ScopeStyles, events.ScopeVendor}, got.Scopes)
		require.Equal(t, []string{
			"app-scripts", "app-styles",
			"plugins-fonts", "plugins-scripts", "plugins-styles", "plugins-images",
		}, got.Stages)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for RebuildRequested")
	}

	select {
	case <-requests:
		t.Fatal("expected only one RebuildRequested for burst")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestRebuildCoalescer_TemplatesOnlyRequestReload(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	requests, unsub := events.Subscribe[events.RebuildRequested](bus, 10)
	defer unsub()

	startCoalescer(t, bus, RebuildCoalescerConfig{QuietWindow: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond})
	require.NoError(t, bus.Publish(context.Background(), change(events.ScopeTemplates, "index.twig")))

	select {
	case got := <-requests:
		require.True(t, got.ReloadOnly())
		require.Equal(t, []events.Scope{events.ScopeTemplates}, got.Scopes)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for RebuildRequested")
	}
}

func TestRebuildCoalescer_MaxDelayForcesRequest(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	requests, unsub := events.Subscribe[events.RebuildRequested](bus, 10)
	defer unsub()

	startCoalescer(t, bus, RebuildCoalescerConfig{
		QuietWindow: 200 * time.Millisecond,
		MaxDelay:    60 * time.Millisecond,
	})

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, bus.Publish(context.Background(), change(events.ScopeImages, "x.png")))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-requests:
		require.Equal(t, "max_delay", got.Cause)
		require.Equal(t, []string{"app-images"}, got.Stages)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for max-delay RebuildRequested")
	}
}

func TestRebuildCoalescer_BuildRunningQueuesOneFollowUp(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	var running atomic.Bool
	running.Store(true)

	requests, unsub := events.Subscribe[events.RebuildRequested](bus, 10)
	defer unsub()

	startCoalescer(t, bus, RebuildCoalescerConfig{
		QuietWindow:       20 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		CheckBuildRunning: running.Load,
		PollInterval:      10 * time.Millisecond,
	})

	for range 3 {
		require.NoError(t, bus.Publish(context.Background(), change(events.ScopeFonts, "f.woff")))
	}

	select {
	case <-requests:
		t.Fatal("should not request while a build is running")
	case <-time.After(120 * time.Millisecond):
	}

	running.Store(false)

	select {
	case got := <-requests:
		require.Equal(t, "after_running", got.Cause)
		require.Equal(t, 3, got.Count)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for follow-up RebuildRequested")
	}

	select {
	case <-requests:
		t.Fatal("expected exactly one follow-up")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestNewRebuildCoalescer_Validation(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	_, err := NewRebuildCoalescer(nil, RebuildCoalescerConfig{QuietWindow: time.Second, MaxDelay: time.Second})
	require.Error(t, err)
	_, err = NewRebuildCoalescer(bus, RebuildCoalescerConfig{MaxDelay: time.Second})
	require.Error(t, err)
	_, err = NewRebuildCoalescer(bus, RebuildCoalescerConfig{QuietWindow: time.Second})
	require.Error(t, err)
}

func TestStagesFor(t *testing.T) {
	require.Empty(t, StagesFor([]events.Scope{events.ScopeTemplates}))
	require.Equal(t,
		[]string{"app-fonts", "app-images"},
		stageStrings(StagesFor([]events.Scope{events.ScopeImages, events.ScopeFonts, events.ScopeImages})))
}
