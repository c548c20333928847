package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// dedupClient is the subset of *redis.Client used for deduplication.
type dedupClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DedupChecker records which events were already published.
// Key format: dedup:event:<event_id>
type DedupChecker struct {
	client dedupClient
	ttl    time.Duration
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
func NewDedupChecker(client dedupClient) *DedupChecker {
	return &DedupChecker{client: client, ttl: dedupTTL}
}

// Claim marks eventID as seen and reports whether this call was the first
// to do so. The mark expires after the TTL.
func (d *DedupChecker) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(eventID), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Release drops the mark so a failed publish can be retried.
func (d *DedupChecker) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.key(eventID)).Err()
}

func (d *DedupChecker) key(eventID string) string {
	return fmt.Sprintf("dedup:event:%s", eventID)
}
