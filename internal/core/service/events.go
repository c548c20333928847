package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
)

// publish hands e to the sink. Delivery failures are logged and never fail
// the state change that produced the event.
func publish(ctx context.Context, sink ports.EventSink, log zerolog.Logger, e events.Event) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, e); err != nil {
		log.Warn().Err(err).
			Str("event_id", e.EventID().String()).
			Str("event_type", string(e.EventType())).
			Str("aggregate_id", e.AggregateID()).
			Msg("event publish failed")
	}
}
