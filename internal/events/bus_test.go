package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[SourceChanged](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), SourceChanged{Scope: ScopeStyles, Path: "app.scss", Op: OpWrite}))

	select {
	case got := <-ch:
		require.Equal(t, ScopeStyles, got.Scope)
		require.Equal(t, "write app.scss (styles)", got.String())
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_ConcreteSubscriptionIgnoresOtherTypes(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[BuildCompleted](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), RebuildRequested{Stages: []string{"app-styles"}}))
	select {
	case got := <-ch:
		t.Fatalf("unexpected event %v", got)
	default:
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[Event](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), RebuildRequested{}))
	require.NoError(t, b.Publish(context.Background(), BuildCompleted{}))

	require.Equal(t, "rebuild_requested", (<-ch).EventName())
	require.Equal(t, "build_completed", (<-ch).EventName())
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[SourceChanged](b, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, SourceChanged{})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[SourceChanged](b, 1)
	require.Equal(t, 1, SubscriberCount[SourceChanged](b))
	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, SubscriberCount[SourceChanged](b))

	_, ok := <-ch
	require.False(t, ok)
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[SourceChanged](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Error(t, b.Publish(context.Background(), SourceChanged{}))

	late, _ := Subscribe[SourceChanged](b, 1)
	_, ok = <-late
	require.False(t, ok)
}

func TestRebuildRequested_ReloadOnly(t *testing.T) {
	require.True(t, RebuildRequested{Scopes: []Scope{ScopeTemplates}}.ReloadOnly())
	require.False(t, RebuildRequested{Stages: []string{"app-scripts"}}.ReloadOnly())
	require.True(t, BuildCompleted{}.Succeeded())
}
