package events

import (
	"encoding/json"
	"time"
)

// Envelope is the wire/storage shape of an event, shared by every sink.
type Envelope struct {
	EventID       string         `json:"eventId" bson:"_id"`
	EventType     Type           `json:"eventType" bson:"event_type"`
	Version       int            `json:"version" bson:"version"`
	AggregateID   string         `json:"aggregateId" bson:"aggregate_id"`
	AggregateType AggregateType  `json:"aggregateType" bson:"aggregate_type"`
	OccurredAt    time.Time      `json:"occurredAt" bson:"occurred_at"`
	Data          map[string]any `json:"data" bson:"data"`
}

// ToEnvelope projects e into its envelope.
func ToEnvelope(e Event) Envelope {
	return Envelope{
		EventID:       e.EventID().String(),
		EventType:     e.EventType(),
		Version:       e.Version(),
		AggregateID:   e.AggregateID(),
		AggregateType: e.AggregateType(),
		OccurredAt:    e.OccurredAt(),
		Data:          e.EventData(),
	}
}

// Marshal encodes e as JSON. Map keys are emitted in sorted order, so the
// output for one event is stable across calls.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(ToEnvelope(e))
}
