package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockProductRepository(t *testing.T) (*GormProductRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormProductRepository(gormDB), mock, mockDB
}

func newCASProduct(t *testing.T) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct("SKU-1", "Widget", "pcs", decimal.NewFromInt(5), decimal.NewFromInt(10), decimal.Zero)
	require.NoError(t, err)
	return p
}

func TestSaveWithLock_RowVersion(t *testing.T) {
	t.Run("bumps the version when the row matches", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		product := newCASProduct(t)
		mock.ExpectExec(`UPDATE "products" SET .*row_version.* WHERE .*id = \$\d+ AND row_version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), product)

		require.NoError(t, err)
		assert.Equal(t, int64(2), product.RowVersion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports the stored version on conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		product := newCASProduct(t)
		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .*row_version.* FROM "products" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"row_version"}).AddRow(4))

		err := repo.SaveWithLock(context.Background(), product)

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, int64(4), de.Details["current_row_version"])
		assert.Equal(t, int64(1), product.RowVersion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports not found when the row is gone", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		product := newCASProduct(t)
		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .*row_version.* FROM "products"`).
			WillReturnRows(sqlmock.NewRows([]string{"row_version"}))

		err := repo.SaveWithLock(context.Background(), product)

		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUniqueViolation(t *testing.T) {
	constraint, ok := uniqueViolation(assert.AnError)
	assert.False(t, ok)
	assert.Empty(t, constraint)

	_, ok = uniqueViolation(nil)
	assert.False(t, ok)

	constraint, ok = uniqueViolation(gorm.ErrDuplicatedKey)
	assert.True(t, ok)
	assert.NotEmpty(t, constraint)
}
