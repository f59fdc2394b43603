package persistence

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Product", id, "find product")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a product and locks its row
func (r *GormProductRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "Product", id, "lock product")
	}
	return model.ToDomain(), nil
}

// FindBySKU finds a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Product", sku, "find product by sku")
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple products by their IDs
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return productsToDomain(rows), nil
}

// FindAll finds products matching the filter
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Product, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.ProductModel{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}
	if active, ok := filter.Filters["is_active"].(bool); ok {
		query = query.Where("is_active = ?", active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	var rows []models.ProductModel
	err := query.
		Order(orderClause(filter.OrderBy, filter.OrderDir, ProductSortFields, "created_at")).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return productsToDomain(rows), total, nil
}

// FindNegativeStock lists products whose stock is below zero
func (r *GormProductRepository) FindNegativeStock(ctx context.Context) ([]catalog.Product, error) {
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("stock_qty < 0").Order("sku ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find negative stock: %w", err)
	}
	return productsToDomain(rows), nil
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	if err := r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Product SKU already exists").
				WithDetail("sku", product.SKU)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// SaveWithLock writes the product when its row version still matches
func (r *GormProductRepository) SaveWithLock(ctx context.Context, product *catalog.Product) error {
	return updateWithRowVersion(r.db.WithContext(ctx), &models.ProductModel{}, "Product", product, map[string]any{
		"name":          product.Name,
		"unit_type":     product.UnitType,
		"cost_price":    product.CostPrice,
		"sell_price":    product.SellPrice,
		"stock_qty":     product.StockQty,
		"reorder_level": product.ReorderLevel,
		"is_active":     product.IsActive,
		"updated_at":    product.UpdatedAt,
	})
}

func productsToDomain(rows []models.ProductModel) []catalog.Product {
	out := make([]catalog.Product, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormPriceChangeLogRepository implements PriceChangeLogRepository using GORM
type GormPriceChangeLogRepository struct {
	db *gorm.DB
}

// NewGormPriceChangeLogRepository creates a new GormPriceChangeLogRepository
func NewGormPriceChangeLogRepository(db *gorm.DB) *GormPriceChangeLogRepository {
	return &GormPriceChangeLogRepository{db: db}
}

// Append stores a new record
func (r *GormPriceChangeLogRepository) Append(ctx context.Context, log *catalog.PriceChangeLog) error {
	if err := r.db.WithContext(ctx).Create(models.PriceChangeLogModelFromDomain(log)).Error; err != nil {
		return fmt.Errorf("append price change: %w", err)
	}
	return nil
}

// FindByProduct lists a product's price history, newest first
func (r *GormPriceChangeLogRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.PriceChangeLog, error) {
	var rows []models.PriceChangeLogModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find price changes: %w", err)
	}
	out := make([]catalog.PriceChangeLog, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ catalog.ProductRepository        = (*GormProductRepository)(nil)
	_ catalog.PriceChangeLogRepository = (*GormPriceChangeLogRepository)(nil)
)
