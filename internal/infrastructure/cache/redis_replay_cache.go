package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/poscore/internal/domain/finance"
	"github.com/redis/go-redis/v9"
)

const defaultReplayKeyPrefix = "pos:payment:idempotency:"

// RedisReplayCache shares completed payment responses between instances
type RedisReplayCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisReplayCache creates a cache on an existing client
func NewRedisReplayCache(client redis.UniversalClient, keyPrefix string) *RedisReplayCache {
	if keyPrefix == "" {
		keyPrefix = defaultReplayKeyPrefix
	}
	return &RedisReplayCache{client: client, keyPrefix: keyPrefix}
}

// Get loads the record cached for key
func (c *RedisReplayCache) Get(ctx context.Context, key string) (*finance.PaymentIdempotency, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get replay entry: %w", err)
	}

	var record finance.PaymentIdempotency
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("decode replay entry: %w", err)
	}
	return &record, true, nil
}

// Set stores record for ttl. An existing entry is kept, since the first
// completed response for a key is the one every retry must see.
func (c *RedisReplayCache) Set(ctx context.Context, record *finance.PaymentIdempotency, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode replay entry: %w", err)
	}
	if err := c.client.SetNX(ctx, c.keyPrefix+record.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set replay entry: %w", err)
	}
	return nil
}
