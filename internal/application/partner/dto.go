package partner

import (
	"time"

	"github.com/erp/poscore/internal/domain/partner"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest represents a request to register a customer
type CreateCustomerRequest struct {
	Code        string          `json:"code" binding:"required,min=1,max=50"`
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Phone       string          `json:"phone" binding:"max=50"`
	Email       string          `json:"email" binding:"omitempty,email,max=200"`
	Address     string          `json:"address" binding:"max=500"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// CustomerListFilter represents customer list query parameters
type CustomerListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID             uuid.UUID       `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address,omitempty"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	Balance        decimal.Decimal `json:"balance"`
	RowVersion     int64           `json:"row_version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RecomputeResponse reports the effect of a balance repair
type RecomputeResponse struct {
	Customer CustomerResponse `json:"customer"`
	Changed  bool             `json:"changed"`
	Before   TotalsResponse   `json:"before"`
}

// TotalsResponse is the cached total triple
type TotalsResponse struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		Phone:          c.Phone,
		Email:          c.Email,
		Address:        c.Address,
		CreditLimit:    c.CreditLimit,
		TotalSales:     c.TotalSales,
		TotalPayments:  c.TotalPayments,
		PendingBalance: c.PendingBalance,
		Balance:        c.Balance,
		RowVersion:     c.RowVersion,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
