package catalog

import (
	"context"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDForUpdate loads a product and holds a row lock until the
	// enclosing transaction ends (no-op on engines without row locks)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindBySKU finds a product by its SKU
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// FindByIDs finds multiple products by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// FindAll finds products matching the filter and returns the total count
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, int64, error)

	// FindNegativeStock lists products whose stock is below zero
	FindNegativeStock(ctx context.Context) ([]Product, error)

	// Create inserts a new product
	Create(ctx context.Context, product *Product) error

	// SaveWithLock writes the product only if its row version still matches
	// the loaded one, and bumps the version on success
	SaveWithLock(ctx context.Context, product *Product) error
}

// PriceChangeLogRepository appends price change records
type PriceChangeLogRepository interface {
	// Append stores a new record
	Append(ctx context.Context, log *PriceChangeLog) error

	// FindByProduct lists a product's price history, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]PriceChangeLog, error)
}
