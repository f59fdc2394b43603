package catalog

import (
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product represents a sellable SKU together with its live stock counter.
// StockQty is only changed through ApplyStockDelta, which the stock ledger
// calls inside the transaction that also appends the ledger row.
type Product struct {
	shared.BaseAggregateRoot
	SKU          string
	Name         string
	UnitType     string
	CostPrice    decimal.Decimal
	SellPrice    decimal.Decimal
	StockQty     decimal.Decimal
	ReorderLevel decimal.Decimal
	IsActive     bool
}

// NewProduct creates a new active product with zero stock
func NewProduct(sku, name, unitType string, costPrice, sellPrice, reorderLevel decimal.Decimal) (*Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if err := validateUnit(unitType); err != nil {
		return nil, err
	}
	if err := validatePrices(costPrice, sellPrice); err != nil {
		return nil, err
	}
	if reorderLevel.IsNegative() {
		return nil, shared.NewValidationError("Reorder level cannot be negative")
	}

	return &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		Name:              strings.TrimSpace(name),
		UnitType:          unitType,
		CostPrice:         costPrice,
		SellPrice:         sellPrice,
		StockQty:          decimal.Zero,
		ReorderLevel:      reorderLevel,
		IsActive:          true,
	}, nil
}

// ApplyStockDelta computes the new stock level. A decrement that ends below
// zero is rejected with INSUFFICIENT_STOCK unless override is set; increments
// always apply, so stock driven negative by an override can be restored.
// Disabled products cannot be sold from without override.
func (p *Product) ApplyStockDelta(delta decimal.Decimal, override bool) (before, after decimal.Decimal, err error) {
	before = p.StockQty
	after = before.Add(delta)

	if !override {
		if delta.IsNegative() && !p.IsActive {
			return before, before, shared.NewDomainError(shared.CodeInvalidState, "Product is disabled").
				WithDetail("product_id", p.ID.String()).
				WithDetail("sku", p.SKU)
		}
		if delta.IsNegative() && after.IsNegative() {
			return before, before, shared.ErrInsufficientStock.
				WithDetail("product_id", p.ID.String()).
				WithDetail("sku", p.SKU).
				WithDetail("available", before.String()).
				WithDetail("requested", delta.Neg().String())
		}
	}

	p.StockQty = after
	p.Touch()
	return before, after, nil
}

// ChangePrices updates cost and sell price and returns the change record.
// It returns nil when neither price changes.
func (p *Product) ChangePrices(costPrice, sellPrice decimal.Decimal, reason string, actor shared.Actor) (*PriceChangeLog, error) {
	if err := validatePrices(costPrice, sellPrice); err != nil {
		return nil, err
	}
	if costPrice.Equal(p.CostPrice) && sellPrice.Equal(p.SellPrice) {
		return nil, nil
	}

	log := NewPriceChangeLog(p, costPrice, sellPrice, reason, actor.ID)
	p.CostPrice = costPrice
	p.SellPrice = sellPrice
	p.Touch()
	return log, nil
}

// Disable hides the product from sale; history stays intact
func (p *Product) Disable() {
	p.IsActive = false
	p.Touch()
}

// NeedsReorder reports whether stock is at or below the reorder level
func (p *Product) NeedsReorder() bool {
	return p.ReorderLevel.IsPositive() && p.StockQty.LessThanOrEqual(p.ReorderLevel)
}

func validateSKU(sku string) error {
	if sku == "" {
		return shared.NewValidationError("SKU cannot be empty")
	}
	if len(sku) > 50 {
		return shared.NewValidationError("SKU cannot exceed 50 characters")
	}
	for _, r := range sku {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.') {
			return shared.NewValidationError("SKU can only contain letters, numbers, dots, underscores, and hyphens")
		}
	}
	return nil
}

func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewValidationError("Product name cannot exceed 200 characters")
	}
	return nil
}

func validateUnit(unit string) error {
	if unit == "" {
		return shared.NewValidationError("Unit type cannot be empty")
	}
	if len(unit) > 20 {
		return shared.NewValidationError("Unit type cannot exceed 20 characters")
	}
	return nil
}

func validatePrices(costPrice, sellPrice decimal.Decimal) error {
	if costPrice.IsNegative() {
		return shared.NewValidationError("Cost price cannot be negative")
	}
	if sellPrice.IsNegative() {
		return shared.NewValidationError("Sell price cannot be negative")
	}
	return nil
}
