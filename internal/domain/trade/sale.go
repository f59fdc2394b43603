package trade

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a sale
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// IsValid checks if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// DerivePaymentStatus maps a paid amount onto a status
func DerivePaymentStatus(paid, grandTotal decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(grandTotal):
		return PaymentStatusPaid
	case paid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

// SaleContent is everything an edit may replace
type SaleContent struct {
	InvoiceDate time.Time
	CustomerID  *uuid.UUID
	VATRate     decimal.Decimal
	Discount    decimal.Decimal
	Notes       string
	Items       []SaleItemInput
}

// Validate checks the content before any transaction opens
func (c SaleContent) Validate() error {
	if err := ValidateItems(c.Items); err != nil {
		return err
	}
	if c.Discount.IsNegative() {
		return shared.NewValidationError("Discount cannot be negative")
	}
	if c.VATRate.IsNegative() || c.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewValidationError("VAT rate must be between 0 and 1")
	}
	if c.CustomerID != nil && *c.CustomerID == uuid.Nil {
		return shared.NewValidationError("Customer reference is invalid")
	}
	if len(c.Notes) > 1000 {
		return shared.NewValidationError("Notes cannot exceed 1000 characters")
	}
	return nil
}

// Sale is an invoice with its lines
type Sale struct {
	shared.BaseAggregateRoot
	InvoiceNo         string
	ExternalReference *string
	InvoiceDate       time.Time
	CustomerID        *uuid.UUID
	VATRate           decimal.Decimal
	Subtotal          decimal.Decimal
	VATTotal          decimal.Decimal
	Discount          decimal.Decimal
	GrandTotal        decimal.Decimal
	PaidAmount        decimal.Decimal
	PaymentStatus     PaymentStatus
	IsFinalized       bool
	IsLocked          bool
	LockedAt          *time.Time
	UnlockedAt        *time.Time
	Version           int
	Notes             string
	OverrideReason    string
	CreatedBy         uuid.UUID
	UpdatedBy         *uuid.UUID
	IsDeleted         bool
	DeletedBy         *uuid.UUID
	DeletedAt         *time.Time
	Items             []SaleItem
}

// NewSale builds a sale at version 1 with computed totals
func NewSale(invoiceNo string, content SaleContent, finalized bool, actor shared.Actor) (*Sale, error) {
	if strings.TrimSpace(invoiceNo) == "" {
		return nil, shared.NewValidationError("Invoice number is required")
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}

	sale := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNo:         invoiceNo,
		PaidAmount:        decimal.Zero,
		PaymentStatus:     PaymentStatusPending,
		IsFinalized:       finalized,
		Version:           1,
		CreatedBy:         actor.ID,
	}
	if err := sale.applyContent(content); err != nil {
		return nil, err
	}
	sale.PaymentStatus = DerivePaymentStatus(sale.PaidAmount, sale.GrandTotal)
	return sale, nil
}

// SetExternalReference attaches the external system id used for idempotent
// creation
func (s *Sale) SetExternalReference(ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		s.ExternalReference = nil
		return
	}
	s.ExternalReference = &ref
}

// applyContent replaces lines and header fields and recomputes totals
func (s *Sale) applyContent(c SaleContent) error {
	invoiceDate := c.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now().UTC()
	}

	items := make([]SaleItem, 0, len(c.Items))
	for i, in := range c.Items {
		items = append(items, NewSaleItem(s.ID, in, c.VATRate, i))
	}

	subtotal := decimal.Zero
	vatTotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineSubtotal())
		vatTotal = vatTotal.Add(item.VATAmount)
	}
	discount := shared.RoundMoney(c.Discount)
	if discount.GreaterThan(subtotal.Add(vatTotal)) {
		return shared.NewValidationError("Discount cannot exceed the invoice amount")
	}

	s.InvoiceDate = invoiceDate
	s.CustomerID = c.CustomerID
	s.VATRate = c.VATRate
	s.Notes = strings.TrimSpace(c.Notes)
	s.Items = items
	s.Subtotal = subtotal
	s.VATTotal = vatTotal
	s.Discount = discount
	s.GrandTotal = subtotal.Add(vatTotal).Sub(discount)
	return nil
}

// Content returns the editable state of the sale
func (s *Sale) Content() SaleContent {
	inputs := make([]SaleItemInput, 0, len(s.Items))
	for _, item := range s.Items {
		inputs = append(inputs, item.Input())
	}
	var customerID *uuid.UUID
	if s.CustomerID != nil {
		id := *s.CustomerID
		customerID = &id
	}
	return SaleContent{
		InvoiceDate: s.InvoiceDate,
		CustomerID:  customerID,
		VATRate:     s.VATRate,
		Discount:    s.Discount,
		Notes:       s.Notes,
		Items:       inputs,
	}
}

// Edit replaces the sale content, optionally finalizing a draft, and bumps the
// edit version. The caller is responsible for stock and version rows.
func (s *Sale) Edit(content SaleContent, finalize bool, actor shared.Actor) error {
	if s.IsDeleted {
		return shared.NewDomainError(shared.CodeInvalidState, "Sale is deleted")
	}
	if s.IsFinalized && !finalize {
		return shared.NewDomainError(shared.CodeInvalidState, "A finalized sale cannot be returned to draft")
	}
	if err := content.Validate(); err != nil {
		return err
	}
	if err := s.applyContent(content); err != nil {
		return err
	}
	s.IsFinalized = finalize
	s.Version++
	s.PaymentStatus = DerivePaymentStatus(s.PaidAmount, s.GrandTotal)
	actorID := actor.ID
	s.UpdatedBy = &actorID
	s.Touch()
	return nil
}

// LockExpiresAt returns when the edit window closes. The window is anchored to
// creation and re-anchored only by an explicit unlock.
func (s *Sale) LockExpiresAt(window time.Duration) time.Time {
	anchor := s.CreatedAt
	if s.UnlockedAt != nil {
		anchor = *s.UnlockedAt
	}
	return anchor.Add(window)
}

// IsEditLocked reports whether edits need a privileged actor
func (s *Sale) IsEditLocked(now time.Time, window time.Duration) bool {
	if s.IsLocked {
		return true
	}
	return window > 0 && now.After(s.LockExpiresAt(window))
}

// CheckEditable applies the lock window and edit reason rules
func (s *Sale) CheckEditable(actor shared.Actor, editReason string, now time.Time, window time.Duration) error {
	if s.IsDeleted {
		return shared.NewDomainError(shared.CodeInvalidState, "Sale is deleted").
			WithDetail("sale_id", s.ID.String())
	}
	if actor.IsPrivileged() {
		return nil
	}
	if s.IsEditLocked(now, window) {
		err := shared.ErrInvoiceLocked.
			WithDetail("sale_id", s.ID.String()).
			WithDetail("lock_expires_at", s.LockExpiresAt(window))
		if s.LockedAt != nil {
			err = err.WithDetail("locked_at", *s.LockedAt)
		}
		return err
	}
	if strings.TrimSpace(editReason) == "" {
		return shared.NewValidationError("An edit reason is required")
	}
	return nil
}

// Lock marks the sale as locked. It returns false if it already was.
func (s *Sale) Lock(now time.Time) bool {
	if s.IsLocked {
		return false
	}
	s.IsLocked = true
	s.LockedAt = &now
	s.UpdatedAt = now
	return true
}

// Unlock clears the lock and restarts the edit window from now.
// It returns false when the sale was neither flagged nor time-locked.
func (s *Sale) Unlock(now time.Time, window time.Duration) bool {
	if !s.IsEditLocked(now, window) {
		return false
	}
	s.IsLocked = false
	s.LockedAt = nil
	s.UnlockedAt = &now
	s.UpdatedAt = now
	return true
}

// MarkDeleted soft-deletes the sale. It returns false if already deleted.
func (s *Sale) MarkDeleted(actor shared.Actor, now time.Time) bool {
	if s.IsDeleted {
		return false
	}
	actorID := actor.ID
	s.IsDeleted = true
	s.DeletedBy = &actorID
	s.DeletedAt = &now
	s.UpdatedAt = now
	return true
}

// ApplyPaymentState stores the paid amount computed by the balance aggregator
func (s *Sale) ApplyPaymentState(paid decimal.Decimal) {
	s.PaidAmount = paid
	s.PaymentStatus = DerivePaymentStatus(paid, s.GrandTotal)
	s.Touch()
}

// Outstanding returns grand total minus the given committed amount
func (s *Sale) Outstanding(committed decimal.Decimal) decimal.Decimal {
	out := s.GrandTotal.Sub(committed)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// QuantitiesByProduct sums line quantities per product
func (s *Sale) QuantitiesByProduct() map[uuid.UUID]decimal.Decimal {
	qty := make(map[uuid.UUID]decimal.Decimal, len(s.Items))
	for _, item := range s.Items {
		qty[item.ProductID] = qty[item.ProductID].Add(item.Qty)
	}
	return qty
}

// ProductIDs returns the distinct product ids in line order
func (s *Sale) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(s.Items))
	ids := make([]uuid.UUID, 0, len(s.Items))
	for _, item := range s.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ProductDelta is a signed stock change for one product
type ProductDelta struct {
	ProductID uuid.UUID
	Delta     decimal.Decimal
}

// StockDeltas returns the stock changes needed to move from the old stock
// effect to the new one, sorted by product id. Only finalized sales hold stock:
// a draft contributes nothing, so draft to finalized yields -new, and a
// finalized edit yields old - new per product.
func StockDeltas(oldQty map[uuid.UUID]decimal.Decimal, oldFinalized bool, newQty map[uuid.UUID]decimal.Decimal, newFinalized bool) []ProductDelta {
	effect := make(map[uuid.UUID]decimal.Decimal)
	if oldFinalized {
		for id, q := range oldQty {
			effect[id] = effect[id].Add(q)
		}
	}
	if newFinalized {
		for id, q := range newQty {
			effect[id] = effect[id].Sub(q)
		}
	}

	deltas := make([]ProductDelta, 0, len(effect))
	for id, d := range effect {
		if d.IsZero() {
			continue
		}
		deltas = append(deltas, ProductDelta{ProductID: id, Delta: d})
	}
	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].ProductID.String() < deltas[j].ProductID.String()
	})
	return deltas
}
