package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

// RedisEventDeduper suppresses redundant deliveries of the same provider event
// across service instances. It is purely an optimization in front of the
// database terminal-state guard, which remains the correctness mechanism, so
// every Redis failure fails open.
//
// Marking happens only after an event has been fully applied. A delivery whose
// processing failed must stay unmarked so the provider's redelivery is not
// suppressed.
type RedisEventDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisEventDeduper(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisEventDeduper {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "konserve:webhook_dedup"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisEventDeduper{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

func (d *RedisEventDeduper) key(provider domain.Provider, reference, status string) string {
	return fmt.Sprintf("%s:%s:%s:%s", d.prefix, provider, strings.TrimSpace(reference), status)
}

// AlreadyDelivered reports whether the (provider, reference, target status)
// tuple was applied within the TTL window.
func (d *RedisEventDeduper) AlreadyDelivered(ctx context.Context, provider domain.Provider, reference, status string) (bool, error) {
	if d == nil || d.client == nil || strings.TrimSpace(reference) == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, d.key(provider, reference, status)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDelivered records that the tuple was applied.
func (d *RedisEventDeduper) MarkDelivered(ctx context.Context, provider domain.Provider, reference, status string) error {
	if d == nil || d.client == nil || strings.TrimSpace(reference) == "" {
		return nil
	}
	return d.client.Set(ctx, d.key(provider, reference, status), time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}
