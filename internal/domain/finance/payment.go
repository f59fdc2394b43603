package finance

import (
	"strings"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMode is how the money was paid
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeCheque       PaymentMode = "cheque"
	PaymentModeOnline       PaymentMode = "online"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
	PaymentModeCard         PaymentMode = "card"
)

// IsValid checks if the mode is valid
func (m PaymentMode) IsValid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCheque, PaymentModeOnline, PaymentModeBankTransfer, PaymentModeCard:
		return true
	}
	return false
}

// DefaultStatus returns the status a new payment starts in. Cheques clear later.
func (m PaymentMode) DefaultStatus() PaymentStatus {
	if m == PaymentModeCheque {
		return PaymentStatusPending
	}
	return PaymentStatusCleared
}

// PaymentStatus is the settlement state of a payment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusCleared  PaymentStatus = "cleared"
	PaymentStatusReturned PaymentStatus = "returned"
	PaymentStatusVoid     PaymentStatus = "void"
)

// IsValid checks if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCleared, PaymentStatusReturned, PaymentStatusVoid:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusReturned || s == PaymentStatusVoid
}

// IsActive reports whether the payment still commits money to its invoices
func (s PaymentStatus) IsActive() bool {
	return s == PaymentStatusPending || s == PaymentStatusCleared
}

// CanTransitionTo checks the one-directional status graph:
// pending -> cleared|returned|void, cleared -> returned|void.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return target == PaymentStatusCleared || target == PaymentStatusReturned || target == PaymentStatusVoid
	case PaymentStatusCleared:
		return target == PaymentStatusReturned || target == PaymentStatusVoid
	}
	return false
}

// Payment is money received from a customer, optionally tied to one sale
type Payment struct {
	shared.BaseAggregateRoot
	SaleID      *uuid.UUID
	CustomerID  *uuid.UUID
	Amount      decimal.Decimal
	Mode        PaymentMode
	Reference   string
	Status      PaymentStatus
	PaymentDate time.Time
	Notes       string
	CreatedBy   uuid.UUID
	IsDeleted   bool
	DeletedBy   *uuid.UUID
	DeletedAt   *time.Time
}

// NewPaymentParams holds the fields of a new payment
type NewPaymentParams struct {
	SaleID      *uuid.UUID
	CustomerID  *uuid.UUID
	Amount      decimal.Decimal
	Mode        PaymentMode
	Status      *PaymentStatus
	Reference   string
	PaymentDate time.Time
	Notes       string
	CreatedBy   uuid.UUID
}

// NewPayment validates and creates a payment. The status defaults from the
// mode; a caller may only start a payment as pending or cleared.
func NewPayment(p NewPaymentParams) (*Payment, error) {
	if !p.Amount.IsPositive() {
		return nil, shared.NewValidationError("Payment amount must be positive")
	}
	if !p.Mode.IsValid() {
		return nil, shared.NewValidationError("Invalid payment mode").WithDetail("mode", string(p.Mode))
	}
	if p.SaleID == nil && p.CustomerID == nil {
		return nil, shared.NewValidationError("A payment requires a sale or a customer")
	}
	status := p.Mode.DefaultStatus()
	if p.Status != nil {
		if !p.Status.IsActive() {
			return nil, shared.NewValidationError("A new payment must be pending or cleared")
		}
		status = *p.Status
	}
	if len(p.Reference) > 100 {
		return nil, shared.NewValidationError("Reference cannot exceed 100 characters")
	}
	paymentDate := p.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SaleID:            p.SaleID,
		CustomerID:        p.CustomerID,
		Amount:            shared.RoundMoney(p.Amount),
		Mode:              p.Mode,
		Reference:         strings.TrimSpace(p.Reference),
		Status:            status,
		PaymentDate:       paymentDate,
		Notes:             strings.TrimSpace(p.Notes),
		CreatedBy:         p.CreatedBy,
	}, nil
}

// CountsTowardTotals reports whether the payment is part of paid totals
func (p *Payment) CountsTowardTotals() bool {
	return !p.IsDeleted && p.Status == PaymentStatusCleared
}

// TransitionTo moves the payment to a new status. It returns false when the
// payment is already in that status.
func (p *Payment) TransitionTo(target PaymentStatus) (bool, error) {
	if !target.IsValid() {
		return false, shared.NewValidationError("Invalid payment status").WithDetail("status", string(target))
	}
	if p.IsDeleted {
		return false, shared.NewDomainError(shared.CodeInvalidState, "Payment is deleted")
	}
	if p.Status == target {
		return false, nil
	}
	if !p.Status.CanTransitionTo(target) {
		return false, shared.NewDomainError(shared.CodeInvalidState, "Payment status transition not allowed").
			WithDetail("from", string(p.Status)).
			WithDetail("to", string(target))
	}
	p.Status = target
	p.Touch()
	return true, nil
}

// ChangeAmount edits the amount of a pending payment. Cleared amounts are
// immutable; a correction is a new compensating payment.
func (p *Payment) ChangeAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("Payment amount must be positive")
	}
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, "Only pending payments can change amount").
			WithDetail("status", string(p.Status))
	}
	p.Amount = shared.RoundMoney(amount)
	p.Touch()
	return nil
}

// UpdateDetails edits the non-financial fields
func (p *Payment) UpdateDetails(mode PaymentMode, reference string, paymentDate time.Time, notes string) error {
	if p.IsDeleted {
		return shared.NewDomainError(shared.CodeInvalidState, "Payment is deleted")
	}
	if mode != "" {
		if !mode.IsValid() {
			return shared.NewValidationError("Invalid payment mode").WithDetail("mode", string(mode))
		}
		p.Mode = mode
	}
	if len(reference) > 100 {
		return shared.NewValidationError("Reference cannot exceed 100 characters")
	}
	p.Reference = strings.TrimSpace(reference)
	if !paymentDate.IsZero() {
		p.PaymentDate = paymentDate
	}
	p.Notes = strings.TrimSpace(notes)
	p.Touch()
	return nil
}

// MarkDeleted voids and soft-deletes the payment. It returns false if it was
// already deleted.
func (p *Payment) MarkDeleted(actor shared.Actor, now time.Time) bool {
	if p.IsDeleted {
		return false
	}
	actorID := actor.ID
	p.IsDeleted = true
	p.Status = PaymentStatusVoid
	p.DeletedBy = &actorID
	p.DeletedAt = &now
	p.UpdatedAt = now
	return true
}
