package models

import (
	"time"

	"github.com/erp/poscore/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SaleModel is the persistence model for the Sale aggregate root. Invoice
// numbers are unique among live sales; an external reference stays owned by
// its sale even after deletion.
type SaleModel struct {
	AggregateModel
	InvoiceNo         string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_sales_invoice_no_live,where:is_deleted = false"`
	ExternalReference *string             `gorm:"type:varchar(100);uniqueIndex"`
	InvoiceDate       time.Time           `gorm:"not null;index"`
	CustomerID        *uuid.UUID          `gorm:"type:uuid;index"`
	VATRate           decimal.Decimal     `gorm:"column:vat_rate;type:decimal(9,6);not null;default:0"`
	Subtotal          decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	VATTotal          decimal.Decimal     `gorm:"column:vat_total;type:decimal(18,4);not null;default:0"`
	Discount          decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	GrandTotal        decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount        decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentStatus     trade.PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	IsFinalized       bool                `gorm:"not null;default:true"`
	IsLocked          bool                `gorm:"not null;default:false"`
	LockedAt          *time.Time
	UnlockedAt        *time.Time
	Version           int        `gorm:"not null;default:1"`
	Notes             string     `gorm:"type:text"`
	OverrideReason    string     `gorm:"type:varchar(500)"`
	CreatedBy         uuid.UUID  `gorm:"type:uuid;not null"`
	UpdatedBy         *uuid.UUID `gorm:"type:uuid"`
	IsDeleted         bool       `gorm:"not null;default:false;index"`
	DeletedBy         *uuid.UUID `gorm:"type:uuid"`
	DeletedAt         *time.Time
	Items             []SaleItemModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale
func (m *SaleModel) ToDomain() *trade.Sale {
	sale := &trade.Sale{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceNo:         m.InvoiceNo,
		ExternalReference: m.ExternalReference,
		InvoiceDate:       m.InvoiceDate,
		CustomerID:        m.CustomerID,
		VATRate:           m.VATRate,
		Subtotal:          m.Subtotal,
		VATTotal:          m.VATTotal,
		Discount:          m.Discount,
		GrandTotal:        m.GrandTotal,
		PaidAmount:        m.PaidAmount,
		PaymentStatus:     m.PaymentStatus,
		IsFinalized:       m.IsFinalized,
		IsLocked:          m.IsLocked,
		LockedAt:          m.LockedAt,
		UnlockedAt:        m.UnlockedAt,
		Version:           m.Version,
		Notes:             m.Notes,
		OverrideReason:    m.OverrideReason,
		CreatedBy:         m.CreatedBy,
		UpdatedBy:         m.UpdatedBy,
		IsDeleted:         m.IsDeleted,
		DeletedBy:         m.DeletedBy,
		DeletedAt:         m.DeletedAt,
		Items:             make([]trade.SaleItem, len(m.Items)),
	}
	for i := range m.Items {
		sale.Items[i] = m.Items[i].ToDomain()
	}
	return sale
}

// FromDomain populates the persistence model from a domain Sale, items included
func (m *SaleModel) FromDomain(s *trade.Sale) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.InvoiceNo = s.InvoiceNo
	m.ExternalReference = s.ExternalReference
	m.InvoiceDate = s.InvoiceDate
	m.CustomerID = s.CustomerID
	m.VATRate = s.VATRate
	m.Subtotal = s.Subtotal
	m.VATTotal = s.VATTotal
	m.Discount = s.Discount
	m.GrandTotal = s.GrandTotal
	m.PaidAmount = s.PaidAmount
	m.PaymentStatus = s.PaymentStatus
	m.IsFinalized = s.IsFinalized
	m.IsLocked = s.IsLocked
	m.LockedAt = s.LockedAt
	m.UnlockedAt = s.UnlockedAt
	m.Version = s.Version
	m.Notes = s.Notes
	m.OverrideReason = s.OverrideReason
	m.CreatedBy = s.CreatedBy
	m.UpdatedBy = s.UpdatedBy
	m.IsDeleted = s.IsDeleted
	m.DeletedBy = s.DeletedBy
	m.DeletedAt = s.DeletedAt
	m.Items = make([]SaleItemModel, len(s.Items))
	for i := range s.Items {
		m.Items[i] = SaleItemModelFromDomain(s.Items[i], s.ID)
	}
}

// SaleModelFromDomain creates a persistence model from a domain Sale
func SaleModelFromDomain(s *trade.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// SaleItemModel is one invoice line
type SaleItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	UnitType  string          `gorm:"type:varchar(20);not null"`
	Qty       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Discount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	VATRate   decimal.Decimal `gorm:"column:vat_rate;type:decimal(9,6);not null;default:0"`
	VATAmount decimal.Decimal `gorm:"column:vat_amount;type:decimal(18,4);not null;default:0"`
	LineTotal decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SortOrder int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// ToDomain converts the persistence model to a domain SaleItem
func (m *SaleItemModel) ToDomain() trade.SaleItem {
	return trade.SaleItem{
		ID:        m.ID,
		SaleID:    m.SaleID,
		ProductID: m.ProductID,
		UnitType:  m.UnitType,
		Qty:       m.Qty,
		UnitPrice: m.UnitPrice,
		Discount:  m.Discount,
		VATRate:   m.VATRate,
		VATAmount: m.VATAmount,
		LineTotal: m.LineTotal,
		SortOrder: m.SortOrder,
	}
}

// SaleItemModelFromDomain creates a persistence model for a line of saleID
func SaleItemModelFromDomain(i trade.SaleItem, saleID uuid.UUID) SaleItemModel {
	return SaleItemModel{
		ID:        i.ID,
		SaleID:    saleID,
		ProductID: i.ProductID,
		UnitType:  i.UnitType,
		Qty:       i.Qty,
		UnitPrice: i.UnitPrice,
		Discount:  i.Discount,
		VATRate:   i.VATRate,
		VATAmount: i.VATAmount,
		LineTotal: i.LineTotal,
		SortOrder: i.SortOrder,
	}
}

// InvoiceVersionModel is an append-only sale snapshot
type InvoiceVersionModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SaleID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_versions_sale_number,priority:1"`
	VersionNumber int            `gorm:"not null;uniqueIndex:idx_invoice_versions_sale_number,priority:2"`
	Snapshot      datatypes.JSON `gorm:"not null"`
	EditedBy      uuid.UUID      `gorm:"type:uuid;not null"`
	EditedAt      time.Time      `gorm:"not null"`
	EditReason    string         `gorm:"type:varchar(500)"`
	DiffSummary   string         `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InvoiceVersionModel) TableName() string {
	return "invoice_versions"
}

// ToDomain converts the persistence model to a domain InvoiceVersion
func (m *InvoiceVersionModel) ToDomain() *trade.InvoiceVersion {
	return &trade.InvoiceVersion{
		ID:            m.ID,
		SaleID:        m.SaleID,
		VersionNumber: m.VersionNumber,
		Snapshot:      []byte(m.Snapshot),
		EditedBy:      m.EditedBy,
		EditedAt:      m.EditedAt,
		EditReason:    m.EditReason,
		DiffSummary:   m.DiffSummary,
	}
}

// InvoiceVersionModelFromDomain creates a persistence model from a domain InvoiceVersion
func InvoiceVersionModelFromDomain(v *trade.InvoiceVersion) *InvoiceVersionModel {
	return &InvoiceVersionModel{
		ID:            v.ID,
		SaleID:        v.SaleID,
		VersionNumber: v.VersionNumber,
		Snapshot:      datatypes.JSON(v.Snapshot),
		EditedBy:      v.EditedBy,
		EditedAt:      v.EditedAt,
		EditReason:    v.EditReason,
		DiffSummary:   v.DiffSummary,
	}
}

// InvoiceSequenceModel is a named counter for invoice numbers
type InvoiceSequenceModel struct {
	Name      string `gorm:"type:varchar(50);primaryKey"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}
