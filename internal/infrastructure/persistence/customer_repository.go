package persistence

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Customer", id, "find customer")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a customer and locks its row
func (r *GormCustomerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "Customer", id, "lock customer")
	}
	return model.ToDomain(), nil
}

// FindByCode finds a customer by its code
func (r *GormCustomerRepository) FindByCode(ctx context.Context, code string) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Customer", code, "find customer by code")
	}
	return model.ToDomain(), nil
}

// FindAll finds customers matching the filter
func (r *GormCustomerRepository) FindAll(ctx context.Context, filter shared.Filter) ([]partner.Customer, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.CustomerModel{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(phone) LIKE ?", pattern, pattern, pattern)
	}
	if owing, ok := filter.Filters["has_balance"].(bool); ok && owing {
		query = query.Where("pending_balance > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	var rows []models.CustomerModel
	err := query.
		Order(orderClause(filter.OrderBy, filter.OrderDir, CustomerSortFields, "created_at")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	out := make([]partner.Customer, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// FindAllIDs lists every customer id
func (r *GormCustomerRepository) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Order("code ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list customer ids: %w", err)
	}
	return ids, nil
}

// Create inserts a new customer
func (r *GormCustomerRepository) Create(ctx context.Context, customer *partner.Customer) error {
	if err := r.db.WithContext(ctx).Create(models.CustomerModelFromDomain(customer)).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Customer code already exists").
				WithDetail("code", customer.Code)
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// SaveWithLock writes profile fields when the row version still matches
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, customer *partner.Customer) error {
	return updateWithRowVersion(r.db.WithContext(ctx), &models.CustomerModel{}, "Customer", customer, map[string]any{
		"name":         customer.Name,
		"phone":        customer.Phone,
		"email":        customer.Email,
		"address":      customer.Address,
		"credit_limit": customer.CreditLimit,
		"updated_at":   customer.UpdatedAt,
	})
}

// UpdateTotals writes the cached totals when the row version still matches
func (r *GormCustomerRepository) UpdateTotals(ctx context.Context, customer *partner.Customer) error {
	return updateWithRowVersion(r.db.WithContext(ctx), &models.CustomerModel{}, "Customer", customer, map[string]any{
		"total_sales":     customer.TotalSales,
		"total_payments":  customer.TotalPayments,
		"pending_balance": customer.PendingBalance,
		"balance":         customer.Balance,
		"updated_at":      customer.UpdatedAt,
	})
}

var _ partner.CustomerRepository = (*GormCustomerRepository)(nil)
