package partner

import (
	"context"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	// FindByID finds a customer by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindByIDForUpdate loads a customer holding a row lock for the rest of
	// the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindByCode finds a customer by its code
	FindByCode(ctx context.Context, code string) (*Customer, error)

	// FindAll finds customers matching the filter and returns the total count
	FindAll(ctx context.Context, filter shared.Filter) ([]Customer, int64, error)

	// FindAllIDs lists every customer id, used by reconciliation scans
	FindAllIDs(ctx context.Context) ([]uuid.UUID, error)

	// Create inserts a new customer
	Create(ctx context.Context, customer *Customer) error

	// SaveWithLock writes profile fields with a row version check
	SaveWithLock(ctx context.Context, customer *Customer) error

	// UpdateTotals writes the cached totals with a row version check
	UpdateTotals(ctx context.Context, customer *Customer) error
}
