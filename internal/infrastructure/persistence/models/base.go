package models

import (
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel adds the row_version concurrency token
type AggregateModel struct {
	BaseModel
	RowVersion int64 `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.RowVersion = a.RowVersion
}

// ToDomainAggregateRoot converts AggregateModel to domain BaseAggregateRoot
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.BaseModel.ToDomain(),
		RowVersion: m.RowVersion,
	}
}

// All lists every model in dependency order for AutoMigrate
func All() []any {
	return []any{
		&ProductModel{},
		&PriceChangeLogModel{},
		&InventoryTransactionModel{},
		&StockAdjustmentModel{},
		&CustomerModel{},
		&SaleModel{},
		&SaleItemModel{},
		&InvoiceVersionModel{},
		&InvoiceSequenceModel{},
		&PaymentModel{},
		&PaymentAllocationModel{},
		&PaymentIdempotencyModel{},
		&AuditLogModel{},
	}
}
