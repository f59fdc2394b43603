package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAllocation records the part of a payment applied to one sale
type PaymentAllocation struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	SaleID    uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// NewPaymentAllocation creates an allocation row
func NewPaymentAllocation(paymentID, saleID uuid.UUID, amount decimal.Decimal) PaymentAllocation {
	return PaymentAllocation{
		ID:        uuid.New(),
		PaymentID: paymentID,
		SaleID:    saleID,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}
