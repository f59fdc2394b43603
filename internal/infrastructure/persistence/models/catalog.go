package models

import (
	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product aggregate root
type ProductModel struct {
	AggregateModel
	SKU          string          `gorm:"column:sku;type:varchar(50);not null;uniqueIndex"`
	Name         string          `gorm:"type:varchar(200);not null"`
	UnitType     string          `gorm:"type:varchar(20);not null"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SellPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StockQty     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	IsActive     bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SKU:               m.SKU,
		Name:              m.Name,
		UnitType:          m.UnitType,
		CostPrice:         m.CostPrice,
		SellPrice:         m.SellPrice,
		StockQty:          m.StockQty,
		ReorderLevel:      m.ReorderLevel,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.SKU = p.SKU
	m.Name = p.Name
	m.UnitType = p.UnitType
	m.CostPrice = p.CostPrice
	m.SellPrice = p.SellPrice
	m.StockQty = p.StockQty
	m.ReorderLevel = p.ReorderLevel
	m.IsActive = p.IsActive
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// PriceChangeLogModel stores one price edit
type PriceChangeLogModel struct {
	BaseModel
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OldCostPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NewCostPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OldSellPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NewSellPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason       string          `gorm:"type:varchar(500)"`
	ChangedBy    uuid.UUID       `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (PriceChangeLogModel) TableName() string {
	return "price_change_logs"
}

// ToDomain converts the persistence model to a domain PriceChangeLog
func (m *PriceChangeLogModel) ToDomain() *catalog.PriceChangeLog {
	return &catalog.PriceChangeLog{
		BaseEntity:   m.BaseModel.ToDomain(),
		ProductID:    m.ProductID,
		OldCostPrice: m.OldCostPrice,
		NewCostPrice: m.NewCostPrice,
		OldSellPrice: m.OldSellPrice,
		NewSellPrice: m.NewSellPrice,
		Reason:       m.Reason,
		ChangedBy:    m.ChangedBy,
	}
}

// PriceChangeLogModelFromDomain creates a persistence model from a domain PriceChangeLog
func PriceChangeLogModelFromDomain(l *catalog.PriceChangeLog) *PriceChangeLogModel {
	m := &PriceChangeLogModel{
		ProductID:    l.ProductID,
		OldCostPrice: l.OldCostPrice,
		NewCostPrice: l.NewCostPrice,
		OldSellPrice: l.OldSellPrice,
		NewSellPrice: l.NewSellPrice,
		Reason:       l.Reason,
		ChangedBy:    l.ChangedBy,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}
