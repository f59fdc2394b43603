package models

import (
	"time"

	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryTransactionModel is one ledger row. Rows are never updated.
type InventoryTransactionModel struct {
	ID              uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	ProductID       uuid.UUID                 `gorm:"type:uuid;not null;index:idx_inv_tx_product_created,priority:1"`
	Quantity        decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	BalanceBefore   decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	BalanceAfter    decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	TransactionType inventory.TransactionType `gorm:"type:varchar(20);not null;index"`
	ReferenceID     *uuid.UUID                `gorm:"type:uuid;index"`
	Reason          string                    `gorm:"type:varchar(500)"`
	Override        bool                      `gorm:"not null;default:false"`
	CreatedBy       *uuid.UUID                `gorm:"type:uuid"`
	CreatedAt       time.Time                 `gorm:"not null;index:idx_inv_tx_product_created,priority:2"`
}

// TableName returns the table name for GORM
func (InventoryTransactionModel) TableName() string {
	return "inventory_transactions"
}

// ToDomain converts the persistence model to a domain InventoryTransaction
func (m *InventoryTransactionModel) ToDomain() *inventory.InventoryTransaction {
	return &inventory.InventoryTransaction{
		ID:              m.ID,
		ProductID:       m.ProductID,
		Quantity:        m.Quantity,
		BalanceBefore:   m.BalanceBefore,
		BalanceAfter:    m.BalanceAfter,
		TransactionType: m.TransactionType,
		ReferenceID:     m.ReferenceID,
		Reason:          m.Reason,
		Override:        m.Override,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
	}
}

// InventoryTransactionModelFromDomain creates a persistence model from a domain InventoryTransaction
func InventoryTransactionModelFromDomain(t *inventory.InventoryTransaction) *InventoryTransactionModel {
	return &InventoryTransactionModel{
		ID:              t.ID,
		ProductID:       t.ProductID,
		Quantity:        t.Quantity,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		TransactionType: t.TransactionType,
		ReferenceID:     t.ReferenceID,
		Reason:          t.Reason,
		Override:        t.Override,
		CreatedBy:       t.CreatedBy,
		CreatedAt:       t.CreatedAt,
	}
}

// StockAdjustmentModel stores a manual adjustment next to its ledger row
type StockAdjustmentModel struct {
	BaseModel
	ProductID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	Delta                  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QtyBefore              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QtyAfter               decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason                 string          `gorm:"type:varchar(500);not null"`
	IsOverride             bool            `gorm:"not null;default:false"`
	AdjustedBy             uuid.UUID       `gorm:"type:uuid;not null"`
	InventoryTransactionID uuid.UUID       `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (StockAdjustmentModel) TableName() string {
	return "stock_adjustments"
}

// ToDomain converts the persistence model to a domain StockAdjustment
func (m *StockAdjustmentModel) ToDomain() *inventory.StockAdjustment {
	return &inventory.StockAdjustment{
		BaseEntity:             m.BaseModel.ToDomain(),
		ProductID:              m.ProductID,
		Delta:                  m.Delta,
		QtyBefore:              m.QtyBefore,
		QtyAfter:               m.QtyAfter,
		Reason:                 m.Reason,
		IsOverride:             m.IsOverride,
		AdjustedBy:             m.AdjustedBy,
		InventoryTransactionID: m.InventoryTransactionID,
	}
}

// StockAdjustmentModelFromDomain creates a persistence model from a domain StockAdjustment
func StockAdjustmentModelFromDomain(a *inventory.StockAdjustment) *StockAdjustmentModel {
	m := &StockAdjustmentModel{
		ProductID:              a.ProductID,
		Delta:                  a.Delta,
		QtyBefore:              a.QtyBefore,
		QtyAfter:               a.QtyAfter,
		Reason:                 a.Reason,
		IsOverride:             a.IsOverride,
		AdjustedBy:             a.AdjustedBy,
		InventoryTransactionID: a.InventoryTransactionID,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}
