package trade

import (
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItem is one invoice line. Monetary figures are derived from
// Qty, UnitPrice, Discount and VATRate by NewSaleItem.
type SaleItem struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	ProductID uuid.UUID
	UnitType  string
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	VATRate   decimal.Decimal
	VATAmount decimal.Decimal
	LineTotal decimal.Decimal
	SortOrder int
}

// SaleItemInput is the caller-supplied content of a line
type SaleItemInput struct {
	ProductID uuid.UUID        `json:"product_id"`
	UnitType  string           `json:"unit_type"`
	Qty       decimal.Decimal  `json:"qty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount"`
	VATRate   *decimal.Decimal `json:"vat_rate,omitempty"`
}

// Validate checks a single line
func (in SaleItemInput) Validate() error {
	if in.ProductID == uuid.Nil {
		return shared.NewValidationError("Each item requires a product")
	}
	if !in.Qty.IsPositive() {
		return shared.NewValidationError("Item quantity must be positive").
			WithDetail("product_id", in.ProductID.String())
	}
	if in.UnitPrice.IsNegative() {
		return shared.NewValidationError("Item price cannot be negative").
			WithDetail("product_id", in.ProductID.String())
	}
	if in.Discount.IsNegative() {
		return shared.NewValidationError("Item discount cannot be negative").
			WithDetail("product_id", in.ProductID.String())
	}
	if in.Discount.GreaterThan(in.Qty.Mul(in.UnitPrice)) {
		return shared.NewValidationError("Item discount cannot exceed the line amount").
			WithDetail("product_id", in.ProductID.String())
	}
	if in.VATRate != nil && (in.VATRate.IsNegative() || in.VATRate.GreaterThan(decimal.NewFromInt(1))) {
		return shared.NewValidationError("VAT rate must be between 0 and 1").
			WithDetail("product_id", in.ProductID.String())
	}
	return nil
}

// ValidateItems checks a whole cart
func ValidateItems(items []SaleItemInput) error {
	if len(items) == 0 {
		return shared.NewValidationError("A sale requires at least one item")
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NewSaleItem computes the line figures:
// lineSubtotal = qty*unitPrice - discount, VAT = round(lineSubtotal*rate, 2),
// lineTotal = lineSubtotal + VAT.
func NewSaleItem(saleID uuid.UUID, in SaleItemInput, defaultRate decimal.Decimal, sortOrder int) SaleItem {
	rate := defaultRate
	if in.VATRate != nil {
		rate = *in.VATRate
	}
	lineSubtotal := shared.RoundMoney(in.Qty.Mul(in.UnitPrice).Sub(in.Discount))
	vat := shared.RoundMoney(lineSubtotal.Mul(rate))

	return SaleItem{
		ID:        uuid.New(),
		SaleID:    saleID,
		ProductID: in.ProductID,
		UnitType:  in.UnitType,
		Qty:       in.Qty,
		UnitPrice: in.UnitPrice,
		Discount:  in.Discount,
		VATRate:   rate,
		VATAmount: vat,
		LineTotal: lineSubtotal.Add(vat),
		SortOrder: sortOrder,
	}
}

// LineSubtotal returns the line amount before VAT
func (i SaleItem) LineSubtotal() decimal.Decimal {
	return i.LineTotal.Sub(i.VATAmount)
}

// Input converts the stored line back to caller input
func (i SaleItem) Input() SaleItemInput {
	rate := i.VATRate
	return SaleItemInput{
		ProductID: i.ProductID,
		UnitType:  i.UnitType,
		Qty:       i.Qty,
		UnitPrice: i.UnitPrice,
		Discount:  i.Discount,
		VATRate:   &rate,
	}
}
