package catalog

import (
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceChangeLog is an append-only record of a price edit
type PriceChangeLog struct {
	shared.BaseEntity
	ProductID    uuid.UUID
	OldCostPrice decimal.Decimal
	NewCostPrice decimal.Decimal
	OldSellPrice decimal.Decimal
	NewSellPrice decimal.Decimal
	Reason       string
	ChangedBy    uuid.UUID
}

// NewPriceChangeLog captures the product's current prices as the old values
func NewPriceChangeLog(p *Product, newCost, newSell decimal.Decimal, reason string, actorID uuid.UUID) *PriceChangeLog {
	return &PriceChangeLog{
		BaseEntity:   shared.NewBaseEntity(),
		ProductID:    p.ID,
		OldCostPrice: p.CostPrice,
		NewCostPrice: newCost,
		OldSellPrice: p.SellPrice,
		NewSellPrice: newSell,
		Reason:       reason,
		ChangedBy:    actorID,
	}
}
