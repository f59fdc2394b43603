package models

import (
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate root
type CustomerModel struct {
	AggregateModel
	Code           string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name           string          `gorm:"type:varchar(200);not null"`
	Phone          string          `gorm:"type:varchar(50)"`
	Email          string          `gorm:"type:varchar(200)"`
	Address        string          `gorm:"type:varchar(500)"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalSales     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalPayments  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PendingBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Balance        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *partner.Customer {
	return &partner.Customer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Phone:             m.Phone,
		Email:             m.Email,
		Address:           m.Address,
		CreditLimit:       m.CreditLimit,
		TotalSales:        m.TotalSales,
		TotalPayments:     m.TotalPayments,
		PendingBalance:    m.PendingBalance,
		Balance:           m.Balance,
	}
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *partner.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Code = c.Code
	m.Name = c.Name
	m.Phone = c.Phone
	m.Email = c.Email
	m.Address = c.Address
	m.CreditLimit = c.CreditLimit
	m.TotalSales = c.TotalSales
	m.TotalPayments = c.TotalPayments
	m.PendingBalance = c.PendingBalance
	m.Balance = c.Balance
}

// CustomerModelFromDomain creates a persistence model from a domain Customer
func CustomerModelFromDomain(c *partner.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}
