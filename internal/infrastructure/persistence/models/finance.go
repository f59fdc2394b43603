package models

import (
	"time"

	"github.com/erp/poscore/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentModel is the persistence model for the Payment aggregate root
type PaymentModel struct {
	AggregateModel
	SaleID      *uuid.UUID            `gorm:"type:uuid;index"`
	CustomerID  *uuid.UUID            `gorm:"type:uuid;index"`
	Amount      decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Mode        finance.PaymentMode   `gorm:"type:varchar(20);not null"`
	Reference   string                `gorm:"type:varchar(100)"`
	Status      finance.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	PaymentDate time.Time             `gorm:"not null;index"`
	Notes       string                `gorm:"type:text"`
	CreatedBy   uuid.UUID             `gorm:"type:uuid;not null"`
	IsDeleted   bool                  `gorm:"not null;default:false;index"`
	DeletedBy   *uuid.UUID            `gorm:"type:uuid"`
	DeletedAt   *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SaleID:            m.SaleID,
		CustomerID:        m.CustomerID,
		Amount:            m.Amount,
		Mode:              m.Mode,
		Reference:         m.Reference,
		Status:            m.Status,
		PaymentDate:       m.PaymentDate,
		Notes:             m.Notes,
		CreatedBy:         m.CreatedBy,
		IsDeleted:         m.IsDeleted,
		DeletedBy:         m.DeletedBy,
		DeletedAt:         m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.SaleID = p.SaleID
	m.CustomerID = p.CustomerID
	m.Amount = p.Amount
	m.Mode = p.Mode
	m.Reference = p.Reference
	m.Status = p.Status
	m.PaymentDate = p.PaymentDate
	m.Notes = p.Notes
	m.CreatedBy = p.CreatedBy
	m.IsDeleted = p.IsDeleted
	m.DeletedBy = p.DeletedBy
	m.DeletedAt = p.DeletedAt
}

// PaymentModelFromDomain creates a persistence model from a domain Payment
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentAllocationModel is the part of a payment applied to one sale
type PaymentAllocationModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain PaymentAllocation
func (m *PaymentAllocationModel) ToDomain() finance.PaymentAllocation {
	return finance.PaymentAllocation{
		ID:        m.ID,
		PaymentID: m.PaymentID,
		SaleID:    m.SaleID,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
}

// PaymentAllocationModelFromDomain creates a persistence model from a domain PaymentAllocation
func PaymentAllocationModelFromDomain(a finance.PaymentAllocation) PaymentAllocationModel {
	return PaymentAllocationModel{
		ID:        a.ID,
		PaymentID: a.PaymentID,
		SaleID:    a.SaleID,
		Amount:    a.Amount,
		CreatedAt: a.CreatedAt,
	}
}

// PaymentIdempotencyModel is a write-once record keyed by the client key
type PaymentIdempotencyModel struct {
	Key              string         `gorm:"type:varchar(128);primaryKey"`
	PaymentID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	Operation        string         `gorm:"type:varchar(50);not null"`
	RequestHash      string         `gorm:"type:varchar(64);not null"`
	ResponseSnapshot datatypes.JSON `gorm:"not null"`
	CreatedBy        uuid.UUID      `gorm:"type:uuid;not null"`
	CreatedAt        time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentIdempotencyModel) TableName() string {
	return "payment_idempotency"
}

// ToDomain converts the persistence model to a domain PaymentIdempotency
func (m *PaymentIdempotencyModel) ToDomain() *finance.PaymentIdempotency {
	return &finance.PaymentIdempotency{
		Key:              m.Key,
		PaymentID:        m.PaymentID,
		Operation:        m.Operation,
		RequestHash:      m.RequestHash,
		ResponseSnapshot: []byte(m.ResponseSnapshot),
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
	}
}

// PaymentIdempotencyModelFromDomain creates a persistence model from a domain PaymentIdempotency
func PaymentIdempotencyModelFromDomain(r *finance.PaymentIdempotency) *PaymentIdempotencyModel {
	return &PaymentIdempotencyModel{
		Key:              r.Key,
		PaymentID:        r.PaymentID,
		Operation:        r.Operation,
		RequestHash:      r.RequestHash,
		ResponseSnapshot: datatypes.JSON(r.ResponseSnapshot),
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
	}
}
