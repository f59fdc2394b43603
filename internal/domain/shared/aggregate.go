package shared

import "github.com/google/uuid"

// Versioned is anything whose writes are conditioned on a row version.
// Repositories read both values before issuing a compare-and-swap update.
type Versioned interface {
	VersionKey() (uuid.UUID, int64)
}

// BaseAggregateRoot provides common fields for aggregate roots.
// RowVersion is the concurrency token: every successful write increments it and
// every update is conditioned on the value that was read.
type BaseAggregateRoot struct {
	BaseEntity
	RowVersion int64
}

// VersionKey returns the id and the row version the aggregate was loaded at
func (a *BaseAggregateRoot) VersionKey() (uuid.UUID, int64) {
	return a.ID, a.RowVersion
}

// Advance records the row version a successful write produced
func (a *BaseAggregateRoot) Advance(next int64) {
	a.RowVersion = next
}

// CheckRowVersion fails with CONCURRENCY_CONFLICT when expected is set and
// differs from the loaded token
func (a *BaseAggregateRoot) CheckRowVersion(entity string, expected *int64) error {
	if expected != nil && *expected != a.RowVersion {
		return NewConcurrencyConflict(entity, a.RowVersion)
	}
	return nil
}

// NewBaseAggregateRoot creates a new base aggregate root at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		RowVersion: 1,
	}
}
