package inventory

import (
	"time"

	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID           uuid.UUID       `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	UnitType     string          `json:"unit_type"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	StockQty     decimal.Decimal `json:"stock_qty"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	NeedsReorder bool            `json:"needs_reorder"`
	IsActive     bool            `json:"is_active"`
	RowVersion   int64           `json:"row_version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		UnitType:     p.UnitType,
		CostPrice:    p.CostPrice,
		SellPrice:    p.SellPrice,
		StockQty:     p.StockQty,
		ReorderLevel: p.ReorderLevel,
		NeedsReorder: p.NeedsReorder(),
		IsActive:     p.IsActive,
		RowVersion:   p.RowVersion,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// TransactionResponse represents a stock ledger row
type TransactionResponse struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	TransactionType string          `json:"transaction_type"`
	ReferenceID     *uuid.UUID      `json:"reference_id,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	Override        bool            `json:"override"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a ledger row to a response
func ToTransactionResponse(t *inventory.InventoryTransaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		ProductID:       t.ProductID,
		Quantity:        t.Quantity,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		TransactionType: string(t.TransactionType),
		ReferenceID:     t.ReferenceID,
		Reason:          t.Reason,
		Override:        t.Override,
		CreatedBy:       t.CreatedBy,
		CreatedAt:       t.CreatedAt,
	}
}

// StockMovementResponse is returned by every stock-changing operation
type StockMovementResponse struct {
	Product       ProductResponse `json:"product"`
	PreviousQty   decimal.Decimal `json:"previous_qty"`
	NewQty        decimal.Decimal `json:"new_qty"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	AdjustmentID  *uuid.UUID      `json:"adjustment_id,omitempty"`
}

// RegisterProductRequest creates a product with optional opening stock
type RegisterProductRequest struct {
	SKU          string          `json:"sku" binding:"required,max=50"`
	Name         string          `json:"name" binding:"required,max=200"`
	UnitType     string          `json:"unit_type" binding:"required,max=20"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
}

// StockMovementRequest is a purchase receipt or a purchase return
type StockMovementRequest struct {
	Quantity    decimal.Decimal `json:"quantity" binding:"required,decimal_gt0"`
	ReferenceID *uuid.UUID      `json:"reference_id"`
	Reason      string          `json:"reason" binding:"max=500"`
}

// AdjustStockRequest is a manual correction of stock. Delta is signed.
type AdjustStockRequest struct {
	Delta    decimal.Decimal `json:"delta" binding:"required"`
	Reason   string          `json:"reason" binding:"required,max=500"`
	Override bool            `json:"override"`
}

// SaleReturnRequest records goods returned against a sale
type SaleReturnRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required,decimal_gt0"`
	Restock   bool            `json:"restock"`
	Reason    string          `json:"reason" binding:"required,max=500"`
}

// SaleReturnResponse reports the effect of a sale return
type SaleReturnResponse struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Restocked     bool            `json:"restocked"`
	NewQty        decimal.Decimal `json:"new_qty"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
}

// ChangePriceRequest changes cost and sell price
type ChangePriceRequest struct {
	CostPrice          decimal.Decimal `json:"cost_price"`
	SellPrice          decimal.Decimal `json:"sell_price"`
	Reason             string          `json:"reason" binding:"required,max=500"`
	ExpectedRowVersion *int64          `json:"expected_row_version"`
}

// ProductListFilter represents product list query parameters
type ProductListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// TransactionListFilter represents ledger list query parameters
type TransactionListFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}
