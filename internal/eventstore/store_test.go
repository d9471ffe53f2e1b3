package eventstore

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

const testBuildID = "build-123"

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	payload := []byte(`{"plan": "build"}`)

	if err := store.Append(ctx, testBuildID, TypeBuildStarted, payload, map[string]string{"host": "ci"}); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := store.GetByBuildID(ctx, testBuildID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.BuildID() != testBuildID {
		t.Errorf("expected build_id %s, got %s", testBuildID, event.BuildID())
	}
	if event.Type() != TypeBuildStarted {
		t.Errorf("expected event_type %s, got %s", TypeBuildStarted, event.Type())
	}
	if !bytes.Equal(event.Payload(), payload) {
		t.Errorf("expected payload %s, got %s", payload, event.Payload())
	}
	if event.Metadata()["host"] != "ci" {
		t.Errorf("expected metadata host=ci, got %v", event.Metadata())
	}
}

func TestEventStoreGetRange(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	now := time.Now()
	for range 3 {
		if err := store.Append(ctx, "build-1", TypeStageCompleted, []byte("{}"), nil); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	events, err := store.GetRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}

	events, err = store.GetRange(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events in the future, got %d", len(events))
	}
}

func TestEventStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	evt, err := NewBuildStarted("build-1", "build", []string{"hash-assets"}, "cli")
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := AppendEvent(t.Context(), store, evt); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	_ = store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	events, err := store.GetByBuildID(t.Context(), "build-1")
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(events) != 1 || events[0].Type() != TypeBuildStarted {
		t.Fatalf("unexpected events after reopen: %v", events)
	}
}
