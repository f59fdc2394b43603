package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/poscore/internal/domain/finance"
)

type replayEntry struct {
	record    finance.PaymentIdempotency
	expiresAt time.Time
}

// InMemoryReplayCache keeps completed payment responses in process memory.
// Suitable for single-instance deployments and tests.
type InMemoryReplayCache struct {
	mu        sync.RWMutex
	entries   map[string]replayEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryReplayCache creates the cache and starts the expiry sweeper
func NewInMemoryReplayCache() *InMemoryReplayCache {
	c := newInMemoryReplayCache(time.Now)
	c.wg.Add(1)
	go c.cleanupLoop(5 * time.Minute)
	return c
}

func newInMemoryReplayCache(now func() time.Time) *InMemoryReplayCache {
	return &InMemoryReplayCache{
		entries:  make(map[string]replayEntry),
		now:      now,
		stopChan: make(chan struct{}),
	}
}

// Get returns a copy of the cached record for key
func (c *InMemoryReplayCache) Get(_ context.Context, key string) (*finance.PaymentIdempotency, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	record := e.record
	record.ResponseSnapshot = append([]byte(nil), e.record.ResponseSnapshot...)
	return &record, true, nil
}

// Set stores a copy of record for ttl
func (c *InMemoryReplayCache) Set(_ context.Context, record *finance.PaymentIdempotency, ttl time.Duration) error {
	stored := *record
	stored.ResponseSnapshot = append([]byte(nil), record.ResponseSnapshot...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[record.Key] = replayEntry{record: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (c *InMemoryReplayCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// Size returns the number of entries, expired ones included
func (c *InMemoryReplayCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryReplayCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryReplayCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
