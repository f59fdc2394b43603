package cache

import (
	"context"
	"fmt"

	appfinance "github.com/erp/poscore/internal/application/finance"
	"github.com/erp/poscore/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReplayCacheFactory picks the replay cache backend from configuration
type ReplayCacheFactory struct {
	cfg                   config.IdempotencyConfig
	redis                 redis.UniversalClient
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ReplayCacheFactoryOption is a functional option for configuring the factory
type ReplayCacheFactoryOption func(*ReplayCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ReplayCacheFactoryOption {
	return func(f *ReplayCacheFactory) {
		f.logger = logger
	}
}

// WithRedisClient supplies the shared Redis client
func WithRedisClient(client redis.UniversalClient) ReplayCacheFactoryOption {
	return func(f *ReplayCacheFactory) {
		f.redis = client
	}
}

// WithInMemoryFallback controls whether a missing Redis client falls back to
// process memory. Default is true.
func WithInMemoryFallback(allow bool) ReplayCacheFactoryOption {
	return func(f *ReplayCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewReplayCacheFactory creates a new factory
func NewReplayCacheFactory(cfg config.IdempotencyConfig, opts ...ReplayCacheFactoryOption) *ReplayCacheFactory {
	f := &ReplayCacheFactory{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds the configured cache. The returned close function releases
// background resources and is never nil.
func (f *ReplayCacheFactory) Create(ctx context.Context) (appfinance.ReplayCache, func() error, error) {
	if f.cfg.CacheBackend == "redis" {
		if f.redis != nil {
			if err := f.redis.Ping(ctx).Err(); err == nil {
				f.logger.Info("using Redis payment replay cache")
				return NewRedisReplayCache(f.redis, ""), func() error { return nil }, nil
			} else if !f.allowInMemoryFallback {
				return nil, nil, fmt.Errorf("Redis required for replay cache but unavailable: %w", err)
			}
		} else if !f.allowInMemoryFallback {
			return nil, nil, fmt.Errorf("Redis required for replay cache but no client configured")
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory payment replay cache")
	}

	c := NewInMemoryReplayCache()
	return c, c.Close, nil
}

var (
	_ appfinance.ReplayCache = (*InMemoryReplayCache)(nil)
	_ appfinance.ReplayCache = (*RedisReplayCache)(nil)
)
