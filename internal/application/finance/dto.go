package finance

import (
	"time"

	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest records money received for one sale, or as account
// credit for a customer when no sale is given
type CreatePaymentRequest struct {
	SaleID      *uuid.UUID      `json:"sale_id,omitempty"`
	CustomerID  *uuid.UUID      `json:"customer_id,omitempty"`
	Amount      decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Mode        string          `json:"mode" binding:"required,oneof=cash cheque online bank_transfer card"`
	Status      string          `json:"status,omitempty" binding:"omitempty,oneof=pending cleared"`
	Reference   string          `json:"reference,omitempty" binding:"max=100"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Notes       string          `json:"notes,omitempty" binding:"max=1000"`
}

// AllocatePaymentRequest splits one customer payment across open invoices.
// SaleIDs fixes the order; when empty the oldest invoices are paid first.
type AllocatePaymentRequest struct {
	CustomerID  uuid.UUID       `json:"customer_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Mode        string          `json:"mode" binding:"required,oneof=cash cheque online bank_transfer card"`
	Status      string          `json:"status,omitempty" binding:"omitempty,oneof=pending cleared"`
	Reference   string          `json:"reference,omitempty" binding:"max=100"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Notes       string          `json:"notes,omitempty" binding:"max=1000"`
	SaleIDs     []uuid.UUID     `json:"sale_ids,omitempty"`
}

// UpdatePaymentRequest edits a payment. Amount may only change while pending.
type UpdatePaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Mode        string           `json:"mode,omitempty" binding:"omitempty,oneof=cash cheque online bank_transfer card"`
	Reference   string           `json:"reference" binding:"max=100"`
	PaymentDate *time.Time       `json:"payment_date,omitempty"`
	Notes       string           `json:"notes" binding:"max=1000"`
}

// PaymentListFilter represents payment list query parameters
type PaymentListFilter struct {
	SaleID         *uuid.UUID `form:"sale_id"`
	CustomerID     *uuid.UUID `form:"customer_id"`
	Status         string     `form:"status" binding:"omitempty,oneof=pending cleared returned void"`
	Mode           string     `form:"mode" binding:"omitempty,oneof=cash cheque online bank_transfer card"`
	From           *time.Time `form:"from" time_format:"2006-01-02"`
	To             *time.Time `form:"to" time_format:"2006-01-02"`
	IncludeDeleted bool       `form:"include_deleted"`
	Page           int        `form:"page" binding:"omitempty,min=1"`
	PageSize       int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy        string     `form:"order_by"`
	OrderDir       string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	SaleID      *uuid.UUID      `json:"sale_id,omitempty"`
	CustomerID  *uuid.UUID      `json:"customer_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Mode        string          `json:"mode"`
	Reference   string          `json:"reference,omitempty"`
	Status      string          `json:"status"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes,omitempty"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	IsDeleted   bool            `json:"is_deleted"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
	RowVersion  int64           `json:"row_version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		SaleID:      p.SaleID,
		CustomerID:  p.CustomerID,
		Amount:      p.Amount,
		Mode:        string(p.Mode),
		Reference:   p.Reference,
		Status:      string(p.Status),
		PaymentDate: p.PaymentDate,
		Notes:       p.Notes,
		CreatedBy:   p.CreatedBy,
		IsDeleted:   p.IsDeleted,
		DeletedAt:   p.DeletedAt,
		RowVersion:  p.RowVersion,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// AllocationResponse is one payment to sale split
type AllocationResponse struct {
	ID     uuid.UUID       `json:"id"`
	SaleID uuid.UUID       `json:"sale_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ToAllocationResponses converts allocation rows
func ToAllocationResponses(rows []finance.PaymentAllocation) []AllocationResponse {
	out := make([]AllocationResponse, len(rows))
	for i, a := range rows {
		out[i] = AllocationResponse{ID: a.ID, SaleID: a.SaleID, Amount: a.Amount}
	}
	return out
}

// SaleBalanceResponse is a sale's payment position after a payment operation
type SaleBalanceResponse struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	InvoiceNo     string          `json:"invoice_no"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	PaymentStatus string          `json:"payment_status"`
	RowVersion    int64           `json:"row_version"`
}

// ToSaleBalanceResponse builds the response from a synced sale and its state
func ToSaleBalanceResponse(s *trade.Sale, state SalePaymentState) SaleBalanceResponse {
	return SaleBalanceResponse{
		SaleID:        s.ID,
		InvoiceNo:     s.InvoiceNo,
		GrandTotal:    s.GrandTotal,
		PaidAmount:    s.PaidAmount,
		Outstanding:   state.Outstanding,
		PaymentStatus: string(s.PaymentStatus),
		RowVersion:    s.RowVersion,
	}
}

// CustomerBalanceResponse is a customer's cached totals
type CustomerBalanceResponse struct {
	CustomerID     uuid.UUID       `json:"customer_id"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	RowVersion     int64           `json:"row_version"`
}

// ToCustomerBalanceResponse converts a customer's totals
func ToCustomerBalanceResponse(c *partner.Customer) *CustomerBalanceResponse {
	if c == nil {
		return nil
	}
	return &CustomerBalanceResponse{
		CustomerID:     c.ID,
		TotalSales:     c.TotalSales,
		TotalPayments:  c.TotalPayments,
		PendingBalance: c.PendingBalance,
		RowVersion:     c.RowVersion,
	}
}

// CreatePaymentResponse is returned by payment creation and allocation. For
// idempotent requests it is what gets stored and replayed.
type CreatePaymentResponse struct {
	Payment           PaymentResponse          `json:"payment"`
	Allocations       []AllocationResponse     `json:"allocations"`
	UnallocatedAmount decimal.Decimal          `json:"unallocated_amount"`
	Sales             []SaleBalanceResponse    `json:"sales"`
	Customer          *CustomerBalanceResponse `json:"customer,omitempty"`
}

// PaymentDetailResponse is a payment with its allocations
type PaymentDetailResponse struct {
	PaymentResponse
	Allocations []AllocationResponse `json:"allocations"`
}
