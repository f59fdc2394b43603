package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/erp/poscore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleRepository implements SaleRepository using GORM. Sales are always
// loaded with their items in line order.
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

func (r *GormSaleRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	})
}

// FindByID finds a sale by ID, including soft-deleted sales
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	var model models.SaleModel
	if err := r.withItems(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Sale", id, "find sale")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the sale row and loads its items
func (r *GormSaleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	var model models.SaleModel
	err := r.withItems(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: clause.CurrentTable}}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "Sale", id, "lock sale")
	}
	return model.ToDomain(), nil
}

// FindByExternalReference finds the sale created for an external id
func (r *GormSaleRepository) FindByExternalReference(ctx context.Context, ref string) (*trade.Sale, error) {
	var model models.SaleModel
	if err := r.withItems(ctx).Where("external_reference = ?", ref).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "Sale", ref, "find sale by external reference")
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNo finds a live sale by invoice number
func (r *GormSaleRepository) FindByInvoiceNo(ctx context.Context, invoiceNo string) (*trade.Sale, error) {
	var model models.SaleModel
	err := r.withItems(ctx).
		Where("invoice_no = ? AND is_deleted = ?", invoiceNo, false).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "Sale", invoiceNo, "find sale by invoice number")
	}
	return model.ToDomain(), nil
}

// FindAll lists sales matching the filter
func (r *GormSaleRepository) FindAll(ctx context.Context, filter trade.SaleFilter) ([]trade.Sale, int64, error) {
	base := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.SaleModel{})
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if base.Search != "" {
		pattern := likePattern(base.Search)
		query = query.Where("LOWER(invoice_no) LIKE ? OR LOWER(external_reference) LIKE ?", pattern, pattern)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.Finalized != nil {
		query = query.Where("is_finalized = ?", *filter.Finalized)
	}
	if filter.From != nil {
		query = query.Where("invoice_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("invoice_date < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	var rows []models.SaleModel
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Order(orderClause(base.OrderBy, base.OrderDir, SaleSortFields, "created_at")).
		Offset(base.Offset()).
		Limit(base.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	return salesToDomain(rows), total, nil
}

// FindByIDs loads several sales
func (r *GormSaleRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]trade.Sale, error) {
	if len(ids) == 0 {
		return []trade.Sale{}, nil
	}
	var rows []models.SaleModel
	if err := r.withItems(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find sales: %w", err)
	}
	return salesToDomain(rows), nil
}

// FindOpenByCustomer lists a customer's live finalized sales that are not
// fully paid, oldest invoice first
func (r *GormSaleRepository) FindOpenByCustomer(ctx context.Context, customerID uuid.UUID) ([]trade.Sale, error) {
	var rows []models.SaleModel
	err := r.withItems(ctx).
		Where("customer_id = ? AND is_deleted = ? AND is_finalized = ? AND payment_status <> ?",
			customerID, false, true, trade.PaymentStatusPaid).
		Order("invoice_date ASC").
		Order("invoice_no ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find open sales: %w", err)
	}
	return salesToDomain(rows), nil
}

// FindLockCandidates lists live, unflagged sales whose edit window, counted
// from creation or the last unlock, closed before cutoff
func (r *GormSaleRepository) FindLockCandidates(ctx context.Context, cutoff time.Time, limit int) ([]trade.Sale, error) {
	var rows []models.SaleModel
	err := r.withItems(ctx).
		Where("created_at < ? AND is_locked = ? AND is_deleted = ?", cutoff, false, false).
		Where("unlocked_at IS NULL OR unlocked_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find lock candidates: %w", err)
	}
	return salesToDomain(rows), nil
}

// FindActiveIDs lists ids of live sales
func (r *GormSaleRepository) FindActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("is_deleted = ?", false).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list sale ids: %w", err)
	}
	return ids, nil
}

// FindDuplicateInvoiceNumbers lists invoice numbers shared by live sales
func (r *GormSaleRepository) FindDuplicateInvoiceNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Select("invoice_no").
		Where("is_deleted = ?", false).
		Group("invoice_no").
		Having("COUNT(*) > 1").
		Order("invoice_no").
		Pluck("invoice_no", &numbers).Error
	if err != nil {
		return nil, fmt.Errorf("find duplicate invoice numbers: %w", err)
	}
	return numbers, nil
}

// SumGrandTotalByCustomer totals the grand totals of a customer's live sales
func (r *GormSaleRepository) SumGrandTotalByCustomer(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	total, err := scanSum(r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Select("COALESCE(SUM(grand_total), 0)").
		Where("customer_id = ? AND is_deleted = ?", customerID, false))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum sales for customer: %w", err)
	}
	return total, nil
}

// Create inserts a sale and its items
func (r *GormSaleRepository) Create(ctx context.Context, sale *trade.Sale) error {
	model := models.SaleModelFromDomain(sale)
	items := model.Items
	model.Items = nil

	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return saleWriteError(err, sale)
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return fmt.Errorf("create sale items: %w", err)
		}
	}
	return nil
}

// UpdateWithLock writes header fields and replaces the items
func (r *GormSaleRepository) UpdateWithLock(ctx context.Context, sale *trade.Sale) error {
	db := r.db.WithContext(ctx)
	if err := r.updateHeader(db, sale); err != nil {
		return err
	}
	if err := db.Where("sale_id = ?", sale.ID).Delete(&models.SaleItemModel{}).Error; err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	items := make([]models.SaleItemModel, len(sale.Items))
	for i := range sale.Items {
		items[i] = models.SaleItemModelFromDomain(sale.Items[i], sale.ID)
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return fmt.Errorf("create sale items: %w", err)
		}
	}
	return nil
}

// UpdateHeaderWithLock writes header fields only
func (r *GormSaleRepository) UpdateHeaderWithLock(ctx context.Context, sale *trade.Sale) error {
	return r.updateHeader(r.db.WithContext(ctx), sale)
}

// UpdatePaymentState writes paid_amount and payment_status
func (r *GormSaleRepository) UpdatePaymentState(ctx context.Context, sale *trade.Sale) error {
	return updateWithRowVersion(r.db.WithContext(ctx), &models.SaleModel{}, "Sale", sale, map[string]any{
		"paid_amount":    sale.PaidAmount,
		"payment_status": sale.PaymentStatus,
		"updated_at":     sale.UpdatedAt,
	})
}

func (r *GormSaleRepository) updateHeader(db *gorm.DB, sale *trade.Sale) error {
	err := updateWithRowVersion(db, &models.SaleModel{}, "Sale", sale, map[string]any{
		"invoice_date":    sale.InvoiceDate,
		"customer_id":     sale.CustomerID,
		"vat_rate":        sale.VATRate,
		"subtotal":        sale.Subtotal,
		"vat_total":       sale.VATTotal,
		"discount":        sale.Discount,
		"grand_total":     sale.GrandTotal,
		"paid_amount":     sale.PaidAmount,
		"payment_status":  sale.PaymentStatus,
		"is_finalized":    sale.IsFinalized,
		"is_locked":       sale.IsLocked,
		"locked_at":       sale.LockedAt,
		"unlocked_at":     sale.UnlockedAt,
		"version":         sale.Version,
		"notes":           sale.Notes,
		"override_reason": sale.OverrideReason,
		"updated_by":      sale.UpdatedBy,
		"is_deleted":      sale.IsDeleted,
		"deleted_by":      sale.DeletedBy,
		"deleted_at":      sale.DeletedAt,
		"updated_at":      sale.UpdatedAt,
	})
	if err != nil {
		return saleWriteError(err, sale)
	}
	return nil
}

// saleWriteError names the unique constraint a sale write ran into
func saleWriteError(err error, sale *trade.Sale) error {
	constraint, dup := uniqueViolation(err)
	if !dup {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return err
		}
		return fmt.Errorf("write sale: %w", err)
	}
	switch {
	case strings.Contains(constraint, "external_reference"):
		de := shared.NewDomainError(shared.CodeDuplicateExternalReference, "External reference already used by another sale")
		if sale.ExternalReference != nil {
			de = de.WithDetail("external_reference", *sale.ExternalReference)
		}
		return de
	case strings.Contains(constraint, "invoice_no"):
		return shared.NewDomainError(shared.CodeDuplicateInvoiceNumber, "Invoice number already in use").
			WithDetail("invoice_no", sale.InvoiceNo)
	default:
		return shared.NewDomainError(shared.CodeAlreadyExists, "Sale already exists").WithCause(err)
	}
}

func salesToDomain(rows []models.SaleModel) []trade.Sale {
	out := make([]trade.Sale, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormInvoiceVersionRepository implements InvoiceVersionRepository using GORM
type GormInvoiceVersionRepository struct {
	db *gorm.DB
}

// NewGormInvoiceVersionRepository creates a new GormInvoiceVersionRepository
func NewGormInvoiceVersionRepository(db *gorm.DB) *GormInvoiceVersionRepository {
	return &GormInvoiceVersionRepository{db: db}
}

// Append inserts a version
func (r *GormInvoiceVersionRepository) Append(ctx context.Context, version *trade.InvoiceVersion) error {
	if err := r.db.WithContext(ctx).Create(models.InvoiceVersionModelFromDomain(version)).Error; err != nil {
		if _, dup := uniqueViolation(err); dup {
			return shared.ErrVersionConflict.
				WithDetail("sale_id", version.SaleID.String()).
				WithDetail("version", version.VersionNumber)
		}
		return fmt.Errorf("append invoice version: %w", err)
	}
	return nil
}

// MaxVersion returns the highest version number stored for a sale
func (r *GormInvoiceVersionRepository) MaxVersion(ctx context.Context, saleID uuid.UUID) (int, error) {
	var maxVersion int
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceVersionModel{}).
		Select("COALESCE(MAX(version_number), 0)").
		Where("sale_id = ?", saleID).
		Scan(&maxVersion).Error
	if err != nil {
		return 0, fmt.Errorf("max invoice version: %w", err)
	}
	return maxVersion, nil
}

// FindBySale lists a sale's versions in ascending order
func (r *GormInvoiceVersionRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]trade.InvoiceVersion, error) {
	var rows []models.InvoiceVersionModel
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("version_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find invoice versions: %w", err)
	}
	out := make([]trade.InvoiceVersion, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindBySaleAndNumber loads one version
func (r *GormInvoiceVersionRepository) FindBySaleAndNumber(ctx context.Context, saleID uuid.UUID, number int) (*trade.InvoiceVersion, error) {
	var model models.InvoiceVersionModel
	err := r.db.WithContext(ctx).
		Where("sale_id = ? AND version_number = ?", saleID, number).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "InvoiceVersion", fmt.Sprintf("%s/%d", saleID, number), "find invoice version")
	}
	return model.ToDomain(), nil
}

// GormInvoiceSequenceRepository implements InvoiceSequenceRepository with
// one counter row per name. The increment holds the row lock until the
// enclosing transaction ends, so numbers are never handed out twice.
type GormInvoiceSequenceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceSequenceRepository creates a new GormInvoiceSequenceRepository
func NewGormInvoiceSequenceRepository(db *gorm.DB) *GormInvoiceSequenceRepository {
	return &GormInvoiceSequenceRepository{db: db}
}

// Next increments the named counter and returns the new value
func (r *GormInvoiceSequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	db := r.db.WithContext(ctx)
	increment := func() (int64, error) {
		result := db.Model(&models.InvoiceSequenceModel{}).
			Where("name = ?", name).
			Updates(map[string]any{
				"value":      gorm.Expr("value + 1"),
				"updated_at": time.Now().UTC(),
			})
		return result.RowsAffected, result.Error
	}

	affected, err := increment()
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}
	if affected == 0 {
		seed := models.InvoiceSequenceModel{Name: name, Value: 0, UpdatedAt: time.Now().UTC()}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return 0, fmt.Errorf("seed sequence %s: %w", name, err)
		}
		if affected, err = increment(); err != nil {
			return 0, fmt.Errorf("increment sequence %s: %w", name, err)
		}
		if affected == 0 {
			return 0, fmt.Errorf("sequence %s missing after seed", name)
		}
	}

	var value int64
	err = db.Model(&models.InvoiceSequenceModel{}).
		Select("value").
		Where("name = ?", name).
		Take(&value).Error
	if err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return value, nil
}

var (
	_ trade.SaleRepository            = (*GormSaleRepository)(nil)
	_ trade.InvoiceVersionRepository  = (*GormInvoiceVersionRepository)(nil)
	_ trade.InvoiceSequenceRepository = (*GormInvoiceSequenceRepository)(nil)
)
