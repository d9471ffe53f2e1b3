// Package eventstore records the history of asset builds in SQLite and
// projects it into per-build summaries for the history command.
package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves build events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error

	// GetByBuildID retrieves all events for a specific build in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange retrieves events within a time range in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	Close() error
}

// AppendEvent stores an already constructed event.
func AppendEvent(ctx context.Context, s Store, e Event) error {
	return s.Append(ctx, e.BuildID(), e.Type(), e.Payload(), e.Metadata())
}
