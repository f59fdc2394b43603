package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID, including soft-deleted payments
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Payment", id, "find payment")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads a payment and locks its row
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "Payment", id, "lock payment")
	}
	return model.ToDomain(), nil
}

// FindAll lists payments matching the filter. A sale filter matches both
// payments recorded against the sale and payments allocated to it.
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter finance.PaymentFilter) ([]finance.Payment, int64, error) {
	base := filter.Filter.Normalize()
	db := r.db.WithContext(ctx)
	query := db.Model(&models.PaymentModel{})
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.SaleID != nil {
		allocated := db.Model(&models.PaymentAllocationModel{}).Select("payment_id").Where("sale_id = ?", *filter.SaleID)
		query = query.Where("sale_id = ? OR id IN (?)", *filter.SaleID, allocated)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Mode != nil {
		query = query.Where("mode = ?", *filter.Mode)
	}
	if filter.From != nil {
		query = query.Where("payment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("payment_date < ?", *filter.To)
	}
	if base.Search != "" {
		query = query.Where("LOWER(reference) LIKE ?", likePattern(base.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	var rows []models.PaymentModel
	err := query.
		Order(orderClause(base.OrderBy, base.OrderDir, PaymentSortFields, "created_at")).
		Offset(base.Offset()).
		Limit(base.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	out := make([]finance.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// SumClearedByCustomer totals live cleared money attributed to a customer
func (r *GormPaymentRepository) SumClearedByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	db := r.db.WithContext(ctx)

	allocated, err := scanSum(db.Table("payment_allocations AS pa").
		Select("COALESCE(SUM(pa.amount), 0)").
		Joins("JOIN payments AS p ON p.id = pa.payment_id").
		Joins("JOIN sales AS s ON s.id = pa.sale_id").
		Where("s.customer_id = ? AND p.status = ? AND p.is_deleted = ?", customerID, finance.PaymentStatusCleared, false))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum allocations for customer: %w", err)
	}

	credit, err := scanSum(db.Table("payments AS p").
		Select("COALESCE(SUM(p.amount - COALESCE((SELECT SUM(a.amount) FROM payment_allocations AS a WHERE a.payment_id = p.id), 0)), 0)").
		Where("p.customer_id = ? AND p.status = ? AND p.is_deleted = ?", customerID, finance.PaymentStatusCleared, false))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum unallocated credit for customer: %w", err)
	}
	return allocated.Add(credit), nil
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *finance.Payment) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// SaveWithLock writes a payment when its row version still matches
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *finance.Payment) error {
	return updateWithRowVersion(r.db.WithContext(ctx), &models.PaymentModel{}, "Payment", payment, map[string]any{
		"mode":       payment.Mode,
		"reference":  payment.Reference,
		"status":     payment.Status,
		"notes":      payment.Notes,
		"is_deleted": payment.IsDeleted,
		"deleted_by": payment.DeletedBy,
		"deleted_at": payment.DeletedAt,
		"updated_at": payment.UpdatedAt,
	})
}

// GormPaymentAllocationRepository implements PaymentAllocationRepository using GORM
type GormPaymentAllocationRepository struct {
	db *gorm.DB
}

// NewGormPaymentAllocationRepository creates a new GormPaymentAllocationRepository
func NewGormPaymentAllocationRepository(db *gorm.DB) *GormPaymentAllocationRepository {
	return &GormPaymentAllocationRepository{db: db}
}

// CreateBatch inserts allocations
func (r *GormPaymentAllocationRepository) CreateBatch(ctx context.Context, allocations []finance.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]models.PaymentAllocationModel, len(allocations))
	for i := range allocations {
		rows[i] = models.PaymentAllocationModelFromDomain(allocations[i])
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("create payment allocations: %w", err)
	}
	return nil
}

// FindByPayment lists a payment's allocations
func (r *GormPaymentAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]finance.PaymentAllocation, error) {
	return r.find(ctx, "payment_id = ?", paymentID)
}

// FindBySale lists allocations made to a sale
func (r *GormPaymentAllocationRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]finance.PaymentAllocation, error) {
	return r.find(ctx, "sale_id = ?", saleID)
}

func (r *GormPaymentAllocationRepository) find(ctx context.Context, cond string, id uuid.UUID) ([]finance.PaymentAllocation, error) {
	var rows []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).Where(cond, id).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find payment allocations: %w", err)
	}
	out := make([]finance.PaymentAllocation, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// SumClearedBySale totals allocations of live cleared payments
func (r *GormPaymentAllocationRepository) SumClearedBySale(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	return r.sumBySale(ctx, saleID, finance.PaymentStatusCleared)
}

// SumActiveBySale totals allocations of live pending or cleared payments
func (r *GormPaymentAllocationRepository) SumActiveBySale(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	return r.sumBySale(ctx, saleID, finance.PaymentStatusPending, finance.PaymentStatusCleared)
}

func (r *GormPaymentAllocationRepository) sumBySale(ctx context.Context, saleID uuid.UUID, statuses ...finance.PaymentStatus) (decimal.Decimal, error) {
	total, err := scanSum(r.db.WithContext(ctx).
		Table("payment_allocations AS pa").
		Select("COALESCE(SUM(pa.amount), 0)").
		Joins("JOIN payments AS p ON p.id = pa.payment_id").
		Where("pa.sale_id = ? AND p.status IN ? AND p.is_deleted = ?", saleID, statuses, false))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum allocations for sale: %w", err)
	}
	return total, nil
}

// UpdateAmount rewrites the amount of a single allocation
func (r *GormPaymentAllocationRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentAllocationModel{}).
		Where("id = ?", id).
		Update("amount", amount)
	if result.Error != nil {
		return fmt.Errorf("update payment allocation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("PaymentAllocation", id)
	}
	return nil
}

// GormPaymentIdempotencyRepository implements PaymentIdempotencyRepository using GORM
type GormPaymentIdempotencyRepository struct {
	db *gorm.DB
}

// NewGormPaymentIdempotencyRepository creates a new GormPaymentIdempotencyRepository
func NewGormPaymentIdempotencyRepository(db *gorm.DB) *GormPaymentIdempotencyRepository {
	return &GormPaymentIdempotencyRepository{db: db}
}

// FindByKey returns the record for a key
func (r *GormPaymentIdempotencyRepository) FindByKey(ctx context.Context, key string) (*finance.PaymentIdempotency, error) {
	var model models.PaymentIdempotencyModel
	err := r.db.WithContext(ctx).Where(&models.PaymentIdempotencyModel{Key: key}).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("PaymentIdempotency", key)
		}
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	return model.ToDomain(), nil
}

// Create inserts a record
func (r *GormPaymentIdempotencyRepository) Create(ctx context.Context, record *finance.PaymentIdempotency) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentIdempotencyModelFromDomain(record)).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Idempotency key already recorded").
				WithDetail("key", record.Key)
		}
		return fmt.Errorf("create idempotency record: %w", err)
	}
	return nil
}

var (
	_ finance.PaymentRepository            = (*GormPaymentRepository)(nil)
	_ finance.PaymentAllocationRepository  = (*GormPaymentAllocationRepository)(nil)
	_ finance.PaymentIdempotencyRepository = (*GormPaymentIdempotencyRepository)(nil)
)
