package inventory

import (
	"context"
	"sort"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockChange is one requested movement of a product's stock
type StockChange struct {
	ProductID   uuid.UUID
	Delta       decimal.Decimal
	Type        inventory.TransactionType
	ReferenceID uuid.UUID
	Reason      string
	Override    bool
	ActorID     uuid.UUID
}

// StockChangeResult reports the stock level after a change. TransactionID is
// nil when the change was a no-op.
type StockChangeResult struct {
	ProductID     uuid.UUID
	PreviousQty   decimal.Decimal
	NewQty        decimal.Decimal
	TransactionID *uuid.UUID
}

// StockLedger is the only writer of Product.StockQty. Every call runs inside
// the caller's transaction: it locks the product row, applies the delta with
// a row-version check, and appends exactly one ledger row.
type StockLedger struct {
	metrics *telemetry.BusinessMetrics
}

// NewStockLedger creates a StockLedger
func NewStockLedger() *StockLedger {
	return &StockLedger{}
}

// SetBusinessMetrics sets the counters rejected changes are recorded on
func (l *StockLedger) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	l.metrics = bm
}

// ApplyStockChange applies a single movement
func (l *StockLedger) ApplyStockChange(ctx context.Context, repos txn.TransactionalRepositories, change StockChange) (*StockChangeResult, error) {
	if change.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("Product ID is required")
	}
	if !change.Type.IsValid() {
		return nil, shared.NewValidationError("Invalid stock transaction type").
			WithDetail("type", string(change.Type))
	}

	productRepo := repos.ProductRepo()
	if change.Delta.IsZero() {
		product, err := productRepo.FindByID(ctx, change.ProductID)
		if err != nil {
			return nil, err
		}
		return &StockChangeResult{
			ProductID:   product.ID,
			PreviousQty: product.StockQty,
			NewQty:      product.StockQty,
		}, nil
	}

	product, err := productRepo.FindByIDForUpdate(ctx, change.ProductID)
	if err != nil {
		return nil, err
	}

	before, after, err := product.ApplyStockDelta(change.Delta, change.Override)
	if err != nil {
		if shared.IsCode(err, shared.CodeInsufficientStock) {
			l.metrics.RecordStockRejection(ctx, string(change.Type))
		}
		return nil, err
	}

	// The row lock serializes writers on engines that support it; the version
	// check catches the rest.
	if err := productRepo.SaveWithLock(ctx, product); err != nil {
		return nil, err
	}

	entry, err := inventory.NewInventoryTransaction(product.ID, change.Type, change.Delta, before, after)
	if err != nil {
		return nil, err
	}
	entry.WithReference(change.ReferenceID).
		WithReason(change.Reason).
		WithOverride(change.Override).
		WithOperatorID(change.ActorID)

	if err := repos.InventoryTransactionRepo().Create(ctx, entry); err != nil {
		return nil, err
	}

	return &StockChangeResult{
		ProductID:     product.ID,
		PreviousQty:   before,
		NewQty:        after,
		TransactionID: &entry.ID,
	}, nil
}

// ApplyStockChanges applies a batch in ascending product id order so that
// concurrent multi-line sales acquire row locks in the same sequence. The
// first failure aborts the batch; the caller's transaction rolls back what
// was already applied.
func (l *StockLedger) ApplyStockChanges(ctx context.Context, repos txn.TransactionalRepositories, changes []StockChange) ([]StockChangeResult, error) {
	ordered := make([]StockChange, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})

	results := make([]StockChangeResult, 0, len(ordered))
	for _, change := range ordered {
		result, err := l.ApplyStockChange(ctx, repos, change)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}
