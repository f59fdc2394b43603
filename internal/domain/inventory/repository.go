package inventory

import (
	"context"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryTransactionRepository is append-only: there is no update or delete.
type InventoryTransactionRepository interface {
	// Create appends a ledger row
	Create(ctx context.Context, tx *InventoryTransaction) error

	// FindByProduct lists a product's movements, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]InventoryTransaction, int64, error)

	// FindByReference lists movements caused by one entity (a sale, a purchase)
	FindByReference(ctx context.Context, refID uuid.UUID) ([]InventoryTransaction, error)

	// SumByProduct returns the ledger total per product id
	SumByProduct(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

// StockAdjustmentRepository appends manual adjustment records
type StockAdjustmentRepository interface {
	// Create appends an adjustment record
	Create(ctx context.Context, adj *StockAdjustment) error

	// FindByProduct lists adjustments for a product, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]StockAdjustment, error)
}
