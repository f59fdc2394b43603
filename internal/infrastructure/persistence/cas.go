package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// versionedRoot is an aggregate whose writes go through updateWithRowVersion
type versionedRoot interface {
	shared.Versioned
	Advance(next int64)
}

// updateWithRowVersion writes values only if row_version still equals the
// version root was loaded at, bumping it in the same statement, and advances
// root on success. When no row matched it reports NOT_FOUND or
// CONCURRENCY_CONFLICT with the version now stored.
func updateWithRowVersion(db *gorm.DB, model any, entity string, root versionedRoot, values map[string]any) error {
	id, current := root.VersionKey()
	next := current + 1
	values["row_version"] = next
	if t, ok := values["updated_at"].(time.Time); !ok || t.IsZero() {
		values["updated_at"] = time.Now().UTC()
	}

	result := db.Model(model).
		Where("id = ? AND row_version = ?", id, current).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("update %s: %w", entity, result.Error)
	}
	if result.RowsAffected == 1 {
		root.Advance(next)
		return nil
	}

	var stored int64
	err := db.Model(model).Select("row_version").Where("id = ?", id).Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(entity, id)
	}
	if err != nil {
		return fmt.Errorf("read %s row version: %w", entity, err)
	}
	return shared.NewConcurrencyConflict(entity, stored)
}

// sumScale is the storage scale of money and quantity columns. SQLite sums
// in floating point, so totals are rounded back to it.
const sumScale = 4

// scanSum runs a single-value SUM query and returns zero for no rows
func scanSum(q *gorm.DB) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(sumScale), nil
}
