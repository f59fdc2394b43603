package persistence

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormInventoryTransactionRepository implements InventoryTransactionRepository using GORM.
// The ledger is append-only; there is no update or delete.
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Create appends a ledger row
func (r *GormInventoryTransactionRepository) Create(ctx context.Context, tx *inventory.InventoryTransaction) error {
	if err := r.db.WithContext(ctx).Create(models.InventoryTransactionModelFromDomain(tx)).Error; err != nil {
		return fmt.Errorf("create inventory transaction: %w", err)
	}
	return nil
}

// FindByProduct lists a product's movements, newest first
func (r *GormInventoryTransactionRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]inventory.InventoryTransaction, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.InventoryTransactionModel{}).Where("product_id = ?", productID)
	if t, ok := filter.Filters["transaction_type"].(string); ok && t != "" {
		query = query.Where("transaction_type = ?", t)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count inventory transactions: %w", err)
	}

	var rows []models.InventoryTransactionModel
	err := query.
		Order("created_at " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory transactions: %w", err)
	}
	return inventoryTransactionsToDomain(rows), total, nil
}

// FindByReference lists the movements recorded for one source document
func (r *GormInventoryTransactionRepository) FindByReference(ctx context.Context, refID uuid.UUID) ([]inventory.InventoryTransaction, error) {
	var rows []models.InventoryTransactionModel
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", refID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find inventory transactions by reference: %w", err)
	}
	return inventoryTransactionsToDomain(rows), nil
}

type productSum struct {
	ProductID uuid.UUID
	Total     decimal.NullDecimal
}

// SumByProduct totals ledger quantities per product
func (r *GormInventoryTransactionRepository) SumByProduct(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []productSum
	err := r.db.WithContext(ctx).
		Model(&models.InventoryTransactionModel{}).
		Select("product_id, SUM(quantity) AS total").
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum inventory by product: %w", err)
	}
	sums := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		if row.Total.Valid {
			sums[row.ProductID] = row.Total.Decimal.Round(sumScale)
		} else {
			sums[row.ProductID] = decimal.Zero
		}
	}
	return sums, nil
}

func inventoryTransactionsToDomain(rows []models.InventoryTransactionModel) []inventory.InventoryTransaction {
	out := make([]inventory.InventoryTransaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormStockAdjustmentRepository implements StockAdjustmentRepository using GORM
type GormStockAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormStockAdjustmentRepository creates a new GormStockAdjustmentRepository
func NewGormStockAdjustmentRepository(db *gorm.DB) *GormStockAdjustmentRepository {
	return &GormStockAdjustmentRepository{db: db}
}

// Create stores an adjustment
func (r *GormStockAdjustmentRepository) Create(ctx context.Context, adj *inventory.StockAdjustment) error {
	if err := r.db.WithContext(ctx).Create(models.StockAdjustmentModelFromDomain(adj)).Error; err != nil {
		return fmt.Errorf("create stock adjustment: %w", err)
	}
	return nil
}

// FindByProduct lists a product's adjustments, newest first
func (r *GormStockAdjustmentRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]inventory.StockAdjustment, error) {
	var rows []models.StockAdjustmentModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find stock adjustments: %w", err)
	}
	out := make([]inventory.StockAdjustment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ inventory.InventoryTransactionRepository = (*GormInventoryTransactionRepository)(nil)
	_ inventory.StockAdjustmentRepository      = (*GormStockAdjustmentRepository)(nil)
)
