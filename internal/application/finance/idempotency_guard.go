package finance

import (
	"context"
	"time"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultReplayTTL is how long a completed request stays in the replay cache
const DefaultReplayTTL = 24 * time.Hour

// ReplayCache is a fast lookup in front of the idempotency table. It is never
// authoritative: a miss falls through to the database.
type ReplayCache interface {
	Get(ctx context.Context, key string) (*finance.PaymentIdempotency, bool, error)
	Set(ctx context.Context, record *finance.PaymentIdempotency, ttl time.Duration) error
}

// IdempotencyGuard makes payment creation safe to retry. A key seen before
// returns the stored response; a new key proceeds and is recorded in the same
// transaction as the payment, so the record exists if and only if the payment
// committed.
type IdempotencyGuard struct {
	scope  txn.TransactionScope
	cache  ReplayCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotencyGuard creates a guard. cache may be nil.
func NewIdempotencyGuard(scope txn.TransactionScope, cache ReplayCache, ttl time.Duration, logger *zap.Logger) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyGuard{scope: scope, cache: cache, ttl: ttl, logger: logger}
}

// CheckOrReserve returns the stored record for key, or nil when the request
// is new and may proceed. A key reused with a different request fails with
// IDEMPOTENCY_KEY_REUSED.
func (g *IdempotencyGuard) CheckOrReserve(ctx context.Context, key, operation, requestHash string) (*finance.PaymentIdempotency, error) {
	if err := finance.ValidateIdempotencyKey(key); err != nil {
		return nil, err
	}

	if g.cache != nil {
		record, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			g.logger.Warn("idempotency cache lookup failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return record, checkMatch(record, operation, requestHash)
		}
	}

	record, err := g.scope.Repositories().PaymentIdempotencyRepo().FindByKey(ctx, key)
	if err != nil {
		if shared.IsCode(err, shared.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := checkMatch(record, operation, requestHash); err != nil {
		return nil, err
	}
	g.Remember(ctx, record)
	return record, nil
}

// Record inserts the record inside the payment transaction
func (g *IdempotencyGuard) Record(ctx context.Context, repos txn.TransactionalRepositories, record *finance.PaymentIdempotency) error {
	return repos.PaymentIdempotencyRepo().Create(ctx, record)
}

// ResolveConflict is called by the loser of a concurrent insert race. It
// returns the record the winner committed.
func (g *IdempotencyGuard) ResolveConflict(ctx context.Context, key, operation, requestHash string) (*finance.PaymentIdempotency, error) {
	record, err := g.scope.Repositories().PaymentIdempotencyRepo().FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := checkMatch(record, operation, requestHash); err != nil {
		return nil, err
	}
	g.Remember(ctx, record)
	return record, nil
}

// Remember pushes a committed record into the replay cache. Failures are
// logged only.
func (g *IdempotencyGuard) Remember(ctx context.Context, record *finance.PaymentIdempotency) {
	if g.cache == nil || record == nil {
		return
	}
	if err := g.cache.Set(ctx, record, g.ttl); err != nil {
		g.logger.Warn("idempotency cache write failed", zap.String("key", record.Key), zap.Error(err))
	}
}

func checkMatch(record *finance.PaymentIdempotency, operation, requestHash string) error {
	if record.Matches(operation, requestHash) {
		return nil
	}
	return shared.NewDomainError(shared.CodeIdempotencyKeyReused,
		"Idempotency key was already used for a different request").
		WithDetail("key", record.Key).
		WithDetail("payment_id", record.PaymentID.String())
}
