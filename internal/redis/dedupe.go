package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeTTL is how long dispatched-event fingerprints are retained. Long
// enough to cover the queue's redelivery window; the unique constraint on
// the notifications table remains the authoritative guard if a duplicate
// slips past after expiry.
const DedupeTTL = 24 * time.Hour

// Deduper is the fast-path duplicate filter for at-least-once event
// delivery. A fingerprint is recorded only after an event has been fully
// dispatched: a crash mid-dispatch leaves it unrecorded, so the queue's
// redelivery is processed instead of being mistaken for a duplicate.
// Racing redeliveries may both pass the check; the unique constraint on
// the notifications table keeps the second write a no-op.
type Deduper struct {
	client *Client
	ttl    time.Duration
}

// NewDeduper creates a deduper with the default TTL.
func NewDeduper(client *Client) *Deduper {
	return &Deduper{client: client, ttl: DedupeTTL}
}

func (d *Deduper) buildKey(fingerprint string) string {
	return fmt.Sprintf("event:%s", fingerprint)
}

// Seen reports whether a completed dispatch is recorded for the
// fingerprint. Seen never claims the fingerprint itself.
func (d *Deduper) Seen(ctx context.Context, fingerprint string) (bool, error) {
	err := d.client.rdb.Get(ctx, d.buildKey(fingerprint)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	return true, nil
}

// Mark records a fully dispatched fingerprint so replays within the TTL
// are skipped.
func (d *Deduper) Mark(ctx context.Context, fingerprint string) error {
	if err := d.client.rdb.Set(ctx, d.buildKey(fingerprint), "1", d.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
