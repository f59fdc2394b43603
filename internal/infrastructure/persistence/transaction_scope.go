package persistence

import (
	"context"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/trade"
	"gorm.io/gorm"
)

// GormTransactionScope implements txn.TransactionScope using GORM transactions
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. The transaction commits
// when fn returns nil and rolls back on an error or panic.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos txn.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGormTransactionalRepositories(tx))
	})
}

// Repositories returns repositories bound to the base connection
func (s *GormTransactionScope) Repositories() txn.TransactionalRepositories {
	return newGormTransactionalRepositories(s.db)
}

// gormTransactionalRepositories hands out repositories sharing one *gorm.DB
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func newGormTransactionalRepositories(tx *gorm.DB) *gormTransactionalRepositories {
	return &gormTransactionalRepositories{tx: tx}
}

func (r *gormTransactionalRepositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormTransactionalRepositories) PriceChangeLogRepo() catalog.PriceChangeLogRepository {
	return NewGormPriceChangeLogRepository(r.tx)
}

func (r *gormTransactionalRepositories) InventoryTransactionRepo() inventory.InventoryTransactionRepository {
	return NewGormInventoryTransactionRepository(r.tx)
}

func (r *gormTransactionalRepositories) StockAdjustmentRepo() inventory.StockAdjustmentRepository {
	return NewGormStockAdjustmentRepository(r.tx)
}

func (r *gormTransactionalRepositories) CustomerRepo() partner.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

func (r *gormTransactionalRepositories) SaleRepo() trade.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *gormTransactionalRepositories) InvoiceVersionRepo() trade.InvoiceVersionRepository {
	return NewGormInvoiceVersionRepository(r.tx)
}

func (r *gormTransactionalRepositories) InvoiceSequenceRepo() trade.InvoiceSequenceRepository {
	return NewGormInvoiceSequenceRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() finance.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentAllocationRepo() finance.PaymentAllocationRepository {
	return NewGormPaymentAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentIdempotencyRepo() finance.PaymentIdempotencyRepository {
	return NewGormPaymentIdempotencyRepository(r.tx)
}

func (r *gormTransactionalRepositories) AuditLogRepo() audit.AuditLogRepository {
	return NewGormAuditLogRepository(r.tx)
}

var (
	_ txn.TransactionScope          = (*GormTransactionScope)(nil)
	_ txn.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
