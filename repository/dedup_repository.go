package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore records processed event ids so retried webhook deliveries can
// be recognized and ignored. Entries are scoped per user and expire after
// the retention window, which must be long enough to outlast realistic
// webhook retry storms.
type DedupStore interface {
	// MarkIfNew records the event id and reports whether it was new.
	MarkIfNew(ctx context.Context, userID, eventID string) (bool, error)
	// Unmark releases an event id so a platform redelivery can be
	// processed; used when applying the event failed transiently.
	Unmark(ctx context.Context, userID, eventID string) error
}

// RedisDedupStore implements DedupStore on Redis, so the ledger survives
// process restarts and is shared between replicas.
type RedisDedupStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisDedupStore creates a dedup store with the given retention window.
func NewRedisDedupStore(client *redis.Client, window time.Duration) *RedisDedupStore {
	return &RedisDedupStore{client: client, window: window}
}

func (s *RedisDedupStore) key(userID, eventID string) string {
	return fmt.Sprintf("dedup:user:%s:event:%s", userID, eventID)
}

// MarkIfNew atomically sets the event key if absent. A false result means
// the same event id was already processed within the window.
func (s *RedisDedupStore) MarkIfNew(ctx context.Context, userID, eventID string) (bool, error) {
	return s.client.SetNX(ctx, s.key(userID, eventID), 1, s.window).Result()
}

// Unmark deletes the event key. The event failed to apply, so the next
// redelivery must not be treated as a duplicate.
func (s *RedisDedupStore) Unmark(ctx context.Context, userID, eventID string) error {
	return s.client.Del(ctx, s.key(userID, eventID)).Err()
}
