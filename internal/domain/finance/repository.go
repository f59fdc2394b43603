package finance

import (
	"context"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	shared.Filter
	SaleID         *uuid.UUID
	CustomerID     *uuid.UUID
	Status         *PaymentStatus
	Mode           *PaymentMode
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID, including soft-deleted payments
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate loads a payment and holds a row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindAll lists payments matching the filter and returns the total count
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)

	// SumClearedByCustomer totals live cleared money attributed to a customer:
	// allocations to the customer's sales plus the unallocated credit of
	// payments recorded for the customer
	SumClearedByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)

	// Create inserts a payment
	Create(ctx context.Context, payment *Payment) error

	// SaveWithLock writes a payment when its row version still matches
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// PaymentAllocationRepository stores payment to sale splits
type PaymentAllocationRepository interface {
	// CreateBatch inserts allocations
	CreateBatch(ctx context.Context, allocations []PaymentAllocation) error

	// FindByPayment lists a payment's allocations
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]PaymentAllocation, error)

	// FindBySale lists allocations made to a sale
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]PaymentAllocation, error)

	// SumClearedBySale totals allocations of live cleared payments
	SumClearedBySale(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)

	// SumActiveBySale totals allocations of live pending or cleared payments
	SumActiveBySale(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)

	// UpdateAmount rewrites the amount of a single allocation
	UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// PaymentIdempotencyRepository is write-once storage of idempotency records
type PaymentIdempotencyRepository interface {
	// FindByKey returns the record for a key, or a NOT_FOUND error
	FindByKey(ctx context.Context, key string) (*PaymentIdempotency, error)

	// Create inserts a record; a duplicate key is an ALREADY_EXISTS error
	Create(ctx context.Context, record *PaymentIdempotency) error
}
