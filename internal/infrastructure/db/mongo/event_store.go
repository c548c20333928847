package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
)

const (
	collectionDomainEvents = "domain_events"
	defaultHistoryLimit    = 100
)

var _ ports.EventStore = (*EventStore)(nil)

// EventStore implements ports.EventStore on the domain_events collection.
// The event id is the document _id, so re-publishing an event is a no-op.
type EventStore struct {
	col *mongo.Collection
}

func NewEventStore(db *mongo.Database) *EventStore {
	return &EventStore{col: db.Collection(collectionDomainEvents)}
}

// Publish appends e to the audit log.
func (s *EventStore) Publish(ctx context.Context, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.col.InsertOne(ctx, events.ToEnvelope(e))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert event %s: %w", e.EventID(), err)
	}
	return nil
}

// FindByAggregate returns up to limit envelopes for one aggregate, oldest first.
func (s *EventStore) FindByAggregate(ctx context.Context, aggType events.AggregateType, aggID string, limit int64) ([]events.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	filter := bson.M{"aggregate_type": string(aggType), "aggregate_id": aggID}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)

	out := []events.Envelope{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return out, nil
}

// EnsureIndexes creates the indexes used by FindByAggregate and type scans.
func (s *EventStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "aggregate_type", Value: 1}, {Key: "aggregate_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "occurred_at", Value: -1}}},
	}

	_, err := s.col.Indexes().CreateMany(ctx, indexes)
	return err
}
