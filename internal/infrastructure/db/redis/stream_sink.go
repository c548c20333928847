package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
	"github.com/99minutos/identity-core/internal/metrics"
)

const (
	DefaultStream    = "identity:events"
	defaultStreamLen = 100_000
)

type streamClient interface {
	dedupClient
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

var _ ports.EventSink = (*StreamSink)(nil)

// StreamSink appends events to a Redis stream for downstream consumers.
// Each event is added at most once per dedup TTL.
type StreamSink struct {
	client streamClient
	dedup  *DedupChecker
	stream string
	log    zerolog.Logger
}

func NewStreamSink(client streamClient, stream string, log zerolog.Logger) *StreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamSink{
		client: client,
		dedup:  NewDedupChecker(client),
		stream: stream,
		log:    log,
	}
}

func (s *StreamSink) Publish(ctx context.Context, e events.Event) error {
	id := e.EventID().String()

	first, err := s.dedup.Claim(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", id).Msg("dedup check failed, publishing anyway")
	} else if !first {
		metrics.EventsDedupTotal.WithLabelValues("hit").Inc()
		s.log.Debug().Str("event_id", id).Str("event_type", string(e.EventType())).Msg("duplicate event skipped")
		return nil
	}
	metrics.EventsDedupTotal.WithLabelValues("miss").Inc()

	payload, err := json.Marshal(e.EventData())
	if err != nil {
		return fmt.Errorf("encode event %s: %w", id, err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: defaultStreamLen,
		Approx: true,
		Values: map[string]any{
			"event_id":       id,
			"event_type":     string(e.EventType()),
			"version":        e.Version(),
			"aggregate_type": string(e.AggregateType()),
			"aggregate_id":   e.AggregateID(),
			"occurred_at":    e.OccurredAt().UTC().Format(time.RFC3339Nano),
			"data":           string(payload),
		},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		if relErr := s.dedup.Release(ctx, id); relErr != nil {
			s.log.Warn().Err(relErr).Str("event_id", id).Msg("failed to release dedup key")
		}
		return fmt.Errorf("xadd event %s: %w", id, err)
	}
	return nil
}
