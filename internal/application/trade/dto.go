package trade

import (
	"time"

	"github.com/erp/poscore/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItemRequest is one invoice line
type SaleItemRequest struct {
	ProductID uuid.UUID        `json:"product_id" binding:"required"`
	UnitType  string           `json:"unit_type" binding:"max=20"`
	Qty       decimal.Decimal  `json:"qty" binding:"required,decimal_gt0"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount"`
	VATRate   *decimal.Decimal `json:"vat_rate,omitempty"`
}

// SalePaymentRequest is a payment taken together with a new sale
type SalePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Mode        string          `json:"mode" binding:"required,oneof=cash cheque online bank_transfer card"`
	Status      string          `json:"status,omitempty" binding:"omitempty,oneof=pending cleared"`
	Reference   string          `json:"reference,omitempty" binding:"max=100"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Notes       string          `json:"notes,omitempty" binding:"max=1000"`
}

// CreateSaleRequest creates an invoice. Finalized defaults to true.
type CreateSaleRequest struct {
	ExternalReference string               `json:"external_reference,omitempty" binding:"max=100"`
	InvoiceDate       *time.Time           `json:"invoice_date,omitempty"`
	CustomerID        *uuid.UUID           `json:"customer_id,omitempty"`
	VATRate           *decimal.Decimal     `json:"vat_rate,omitempty"`
	Discount          decimal.Decimal      `json:"discount"`
	Notes             string               `json:"notes,omitempty" binding:"max=1000"`
	Finalized         *bool                `json:"finalized,omitempty"`
	Items             []SaleItemRequest    `json:"items" binding:"required,min=1,dive"`
	Payments          []SalePaymentRequest `json:"payments,omitempty" binding:"omitempty,dive"`
}

// CreateSaleWithOverrideRequest is a privileged creation that may take stock
// below zero
type CreateSaleWithOverrideRequest struct {
	CreateSaleRequest
	OverrideReason string `json:"override_reason" binding:"required,max=500"`
}

// UpdateSaleRequest replaces the content of a sale. Finalized defaults to the
// current state.
type UpdateSaleRequest struct {
	InvoiceDate        *time.Time        `json:"invoice_date,omitempty"`
	CustomerID         *uuid.UUID        `json:"customer_id,omitempty"`
	VATRate            *decimal.Decimal  `json:"vat_rate,omitempty"`
	Discount           decimal.Decimal   `json:"discount"`
	Notes              string            `json:"notes,omitempty" binding:"max=1000"`
	Finalized          *bool             `json:"finalized,omitempty"`
	Items              []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	EditReason         string            `json:"edit_reason" binding:"max=500"`
	ExpectedRowVersion *int64            `json:"expected_row_version,omitempty"`
}

// UnlockSaleRequest carries the admin's reason for unlocking
type UnlockSaleRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// RestoreVersionRequest restores an earlier invoice version
type RestoreVersionRequest struct {
	ExpectedRowVersion *int64 `json:"expected_row_version,omitempty"`
}

// SaleListFilter represents sale list query parameters
type SaleListFilter struct {
	CustomerID     *uuid.UUID `form:"customer_id"`
	PaymentStatus  string     `form:"payment_status" binding:"omitempty,oneof=pending partial paid"`
	Finalized      *bool      `form:"finalized"`
	From           *time.Time `form:"from" time_format:"2006-01-02"`
	To             *time.Time `form:"to" time_format:"2006-01-02"`
	IncludeDeleted bool       `form:"include_deleted"`
	Search         string     `form:"search"`
	Page           int        `form:"page" binding:"omitempty,min=1"`
	PageSize       int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy        string     `form:"order_by"`
	OrderDir       string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SaleItemResponse is one invoice line in responses
type SaleItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	UnitType  string          `json:"unit_type"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	VATRate   decimal.Decimal `json:"vat_rate"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID                uuid.UUID          `json:"id"`
	InvoiceNo         string             `json:"invoice_no"`
	ExternalReference *string            `json:"external_reference,omitempty"`
	InvoiceDate       time.Time          `json:"invoice_date"`
	CustomerID        *uuid.UUID         `json:"customer_id,omitempty"`
	VATRate           decimal.Decimal    `json:"vat_rate"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	VATTotal          decimal.Decimal    `json:"vat_total"`
	Discount          decimal.Decimal    `json:"discount"`
	GrandTotal        decimal.Decimal    `json:"grand_total"`
	PaidAmount        decimal.Decimal    `json:"paid_amount"`
	PaymentStatus     string             `json:"payment_status"`
	IsFinalized       bool               `json:"is_finalized"`
	IsLocked          bool               `json:"is_locked"`
	IsEditLocked      bool               `json:"is_edit_locked"`
	LockedAt          *time.Time         `json:"locked_at,omitempty"`
	UnlockedAt        *time.Time         `json:"unlocked_at,omitempty"`
	LockExpiresAt     time.Time          `json:"lock_expires_at"`
	Version           int                `json:"version"`
	RowVersion        int64              `json:"row_version"`
	Notes             string             `json:"notes,omitempty"`
	OverrideReason    string             `json:"override_reason,omitempty"`
	CreatedBy         uuid.UUID          `json:"created_by"`
	UpdatedBy         *uuid.UUID         `json:"updated_by,omitempty"`
	IsDeleted         bool               `json:"is_deleted"`
	DeletedBy         *uuid.UUID         `json:"deleted_by,omitempty"`
	DeletedAt         *time.Time         `json:"deleted_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Items             []SaleItemResponse `json:"items"`
	Replayed          bool               `json:"-"`
}

// ToSaleResponse converts a domain sale to a response
func ToSaleResponse(s *trade.Sale, window time.Duration, now time.Time) SaleResponse {
	items := make([]SaleItemResponse, len(s.Items))
	for i, item := range s.Items {
		items[i] = SaleItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			UnitType:  item.UnitType,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			VATRate:   item.VATRate,
			VATAmount: item.VATAmount,
			LineTotal: item.LineTotal,
		}
	}
	return SaleResponse{
		ID:                s.ID,
		InvoiceNo:         s.InvoiceNo,
		ExternalReference: s.ExternalReference,
		InvoiceDate:       s.InvoiceDate,
		CustomerID:        s.CustomerID,
		VATRate:           s.VATRate,
		Subtotal:          s.Subtotal,
		VATTotal:          s.VATTotal,
		Discount:          s.Discount,
		GrandTotal:        s.GrandTotal,
		PaidAmount:        s.PaidAmount,
		PaymentStatus:     string(s.PaymentStatus),
		IsFinalized:       s.IsFinalized,
		IsLocked:          s.IsLocked,
		IsEditLocked:      s.IsEditLocked(now, window),
		LockedAt:          s.LockedAt,
		UnlockedAt:        s.UnlockedAt,
		LockExpiresAt:     s.LockExpiresAt(window),
		Version:           s.Version,
		RowVersion:        s.RowVersion,
		Notes:             s.Notes,
		OverrideReason:    s.OverrideReason,
		CreatedBy:         s.CreatedBy,
		UpdatedBy:         s.UpdatedBy,
		IsDeleted:         s.IsDeleted,
		DeletedBy:         s.DeletedBy,
		DeletedAt:         s.DeletedAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		Items:             items,
	}
}

// InvoiceVersionResponse represents an invoice version
type InvoiceVersionResponse struct {
	ID            uuid.UUID           `json:"id"`
	SaleID        uuid.UUID           `json:"sale_id"`
	VersionNumber int                 `json:"version_number"`
	EditedBy      uuid.UUID           `json:"edited_by"`
	EditedAt      time.Time           `json:"edited_at"`
	EditReason    string              `json:"edit_reason,omitempty"`
	DiffSummary   string              `json:"diff_summary,omitempty"`
	Snapshot      *trade.SaleSnapshot `json:"snapshot,omitempty"`
}

// ToInvoiceVersionResponse converts a version row. The snapshot is decoded
// only when withSnapshot is set.
func ToInvoiceVersionResponse(v *trade.InvoiceVersion, withSnapshot bool) (InvoiceVersionResponse, error) {
	resp := InvoiceVersionResponse{
		ID:            v.ID,
		SaleID:        v.SaleID,
		VersionNumber: v.VersionNumber,
		EditedBy:      v.EditedBy,
		EditedAt:      v.EditedAt,
		EditReason:    v.EditReason,
		DiffSummary:   v.DiffSummary,
	}
	if withSnapshot {
		snap, err := v.DecodeSnapshot()
		if err != nil {
			return InvoiceVersionResponse{}, err
		}
		resp.Snapshot = snap
	}
	return resp, nil
}

func toItemInputs(items []SaleItemRequest) []trade.SaleItemInput {
	out := make([]trade.SaleItemInput, len(items))
	for i, item := range items {
		out[i] = trade.SaleItemInput{
			ProductID: item.ProductID,
			UnitType:  item.UnitType,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			VATRate:   item.VATRate,
		}
	}
	return out
}
