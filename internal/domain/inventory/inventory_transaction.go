package inventory

import (
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of inventory transaction
type TransactionType string

const (
	// TransactionTypePurchase represents stock received from a supplier
	TransactionTypePurchase TransactionType = "purchase"
	// TransactionTypeSale represents stock leaving through a finalized sale, or
	// coming back when that sale is edited or deleted
	TransactionTypeSale TransactionType = "sale"
	// TransactionTypeAdjustment represents a manual correction
	TransactionTypeAdjustment TransactionType = "adjustment"
	// TransactionTypeReturn represents goods returned by a customer
	TransactionTypeReturn TransactionType = "return"
	// TransactionTypePurchaseReturn represents goods sent back to a supplier
	TransactionTypePurchaseReturn TransactionType = "purchase_return"
	// TransactionTypeOpening represents the opening balance of a new product
	TransactionTypeOpening TransactionType = "opening"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePurchase,
		TransactionTypeSale,
		TransactionTypeAdjustment,
		TransactionTypeReturn,
		TransactionTypePurchaseReturn,
		TransactionTypeOpening:
		return true
	}
	return false
}

// InventoryTransaction is an immutable record of one stock movement.
// Quantity is signed: positive adds stock, negative removes it. The sum of all
// rows for a product equals its live StockQty.
type InventoryTransaction struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Quantity        decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	TransactionType TransactionType
	ReferenceID     *uuid.UUID
	Reason          string
	Override        bool
	CreatedBy       *uuid.UUID
	CreatedAt       time.Time
}

// NewInventoryTransaction creates a new ledger row
func NewInventoryTransaction(
	productID uuid.UUID,
	txType TransactionType,
	quantity decimal.Decimal,
	balanceBefore decimal.Decimal,
	balanceAfter decimal.Decimal,
) (*InventoryTransaction, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("Product ID cannot be empty")
	}
	if !txType.IsValid() {
		return nil, shared.NewValidationError("Invalid transaction type")
	}
	if quantity.IsZero() {
		return nil, shared.NewValidationError("Quantity cannot be zero")
	}
	if !balanceBefore.Add(quantity).Equal(balanceAfter) {
		return nil, shared.NewValidationError("Balance after must equal balance before plus quantity")
	}

	return &InventoryTransaction{
		ID:              uuid.New(),
		ProductID:       productID,
		Quantity:        quantity,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceAfter,
		TransactionType: txType,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// WithReference sets the originating entity
func (t *InventoryTransaction) WithReference(refID uuid.UUID) *InventoryTransaction {
	if refID != uuid.Nil {
		t.ReferenceID = &refID
	}
	return t
}

// WithReason sets the reason for the transaction
func (t *InventoryTransaction) WithReason(reason string) *InventoryTransaction {
	t.Reason = reason
	return t
}

// WithOverride marks the movement as having bypassed the negative-stock check
func (t *InventoryTransaction) WithOverride(override bool) *InventoryTransaction {
	t.Override = override
	return t
}

// WithOperatorID sets the actor who caused the movement
func (t *InventoryTransaction) WithOperatorID(operatorID uuid.UUID) *InventoryTransaction {
	if operatorID != uuid.Nil {
		t.CreatedBy = &operatorID
	}
	return t
}
