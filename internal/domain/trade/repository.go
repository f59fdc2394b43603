package trade

import (
	"context"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleFilter narrows sale listings
type SaleFilter struct {
	shared.Filter
	CustomerID     *uuid.UUID
	PaymentStatus  *PaymentStatus
	Finalized      *bool
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
}

// SaleRepository defines the interface for sale persistence. Every load
// returns the sale with its items.
type SaleRepository interface {
	// FindByID finds a sale by ID, including soft-deleted sales
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByIDForUpdate loads a sale and holds a row lock for the rest of
	// the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByExternalReference finds the sale created for an external id
	FindByExternalReference(ctx context.Context, ref string) (*Sale, error)

	// FindByInvoiceNo finds a live sale by invoice number
	FindByInvoiceNo(ctx context.Context, invoiceNo string) (*Sale, error)

	// FindAll lists sales matching the filter and returns the total count
	FindAll(ctx context.Context, filter SaleFilter) ([]Sale, int64, error)

	// FindByIDs loads several sales
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Sale, error)

	// FindOpenByCustomer lists a customer's live sales that are not fully
	// paid, oldest invoice first
	FindOpenByCustomer(ctx context.Context, customerID uuid.UUID) ([]Sale, error)

	// FindLockCandidates lists live, unflagged sales created before cutoff
	FindLockCandidates(ctx context.Context, cutoff time.Time, limit int) ([]Sale, error)

	// FindActiveIDs lists ids of live sales
	FindActiveIDs(ctx context.Context) ([]uuid.UUID, error)

	// FindDuplicateInvoiceNumbers lists invoice numbers used by more than
	// one live sale
	FindDuplicateInvoiceNumbers(ctx context.Context) ([]string, error)

	// SumGrandTotalByCustomer totals the grand totals of a customer's live sales
	SumGrandTotalByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)

	// Create inserts a sale with its items
	Create(ctx context.Context, sale *Sale) error

	// UpdateWithLock writes header fields and replaces the items when the row
	// version still matches; the version is bumped on success
	UpdateWithLock(ctx context.Context, sale *Sale) error

	// UpdateHeaderWithLock writes header fields only, with the same version check
	UpdateHeaderWithLock(ctx context.Context, sale *Sale) error

	// UpdatePaymentState writes paid_amount and payment_status with the same
	// version check
	UpdatePaymentState(ctx context.Context, sale *Sale) error
}

// InvoiceVersionRepository is append-only
type InvoiceVersionRepository interface {
	// Append inserts a version; a duplicate (sale, number) pair is a
	// VERSION_CONFLICT
	Append(ctx context.Context, version *InvoiceVersion) error

	// MaxVersion returns the highest version number stored for a sale, 0 if none
	MaxVersion(ctx context.Context, saleID uuid.UUID) (int, error)

	// FindBySale lists a sale's versions in ascending order
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]InvoiceVersion, error)

	// FindBySaleAndNumber loads one version
	FindBySaleAndNumber(ctx context.Context, saleID uuid.UUID, number int) (*InvoiceVersion, error)
}

// InvoiceSequenceRepository backs the invoice-number allocator
type InvoiceSequenceRepository interface {
	// Next increments the named counter and returns the new value
	Next(ctx context.Context, name string) (int64, error)
}
