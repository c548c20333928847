package ports

import (
	"context"

	"github.com/99minutos/identity-core/internal/core/events"
)

// EventSink accepts domain events for delivery. Publishing the same event
// twice must not duplicate it downstream.
type EventSink interface {
	Publish(ctx context.Context, e events.Event) error
}

// EventStore is the durable audit log of published events.
type EventStore interface {
	EventSink
	// FindByAggregate returns the stored envelopes of one aggregate, oldest first.
	FindByAggregate(ctx context.Context, aggType events.AggregateType, aggID string, limit int64) ([]events.Envelope, error)
}
