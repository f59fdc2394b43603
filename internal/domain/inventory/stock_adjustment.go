package inventory

import (
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockAdjustment records a manual stock intervention next to the ledger row
// it produced
type StockAdjustment struct {
	shared.BaseEntity
	ProductID              uuid.UUID
	Delta                  decimal.Decimal
	QtyBefore              decimal.Decimal
	QtyAfter               decimal.Decimal
	Reason                 string
	IsOverride             bool
	AdjustedBy             uuid.UUID
	InventoryTransactionID uuid.UUID
}

// NewStockAdjustment validates and builds an adjustment record
func NewStockAdjustment(productID uuid.UUID, delta, before, after decimal.Decimal, reason string, override bool, actorID, txnID uuid.UUID) (*StockAdjustment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewValidationError("Adjustment reason is required")
	}
	if delta.IsZero() {
		return nil, shared.NewValidationError("Adjustment quantity cannot be zero")
	}
	return &StockAdjustment{
		BaseEntity:             shared.NewBaseEntity(),
		ProductID:              productID,
		Delta:                  delta,
		QtyBefore:              before,
		QtyAfter:               after,
		Reason:                 reason,
		IsOverride:             override,
		AdjustedBy:             actorID,
		InventoryTransactionID: txnID,
	}, nil
}
