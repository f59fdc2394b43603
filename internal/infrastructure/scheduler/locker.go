package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// UnlockFunc releases a job lock
type UnlockFunc func(ctx context.Context) error

// JobLocker hands out one short-lived lock per job tick. Only background jobs
// take it; request handling never does.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// RedisLocker coordinates replicas through bsm/redislock
type RedisLocker struct {
	client *redislock.Client
	prefix string
}

// NewRedisLocker creates a locker on the given redis client
func NewRedisLocker(client redislock.RedisClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client), prefix: "pos:job:"}
}

// TryLock obtains the lock without retrying. ErrLockNotObtained means another
// replica is running the job.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// expired while the job ran
			return nil
		}
		return err
	}, nil
}

// LocalLocker serializes jobs inside one process. Used when redis is off,
// which means a single replica.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryLock implements JobLocker. The ttl is ignored.
func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLockNotObtained
	}
	l.held[key] = struct{}{}
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, nil
}

var (
	_ JobLocker = (*RedisLocker)(nil)
	_ JobLocker = (*LocalLocker)(nil)
)
