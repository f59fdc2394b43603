package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// uniqueViolation reports whether err is a unique constraint failure and
// returns the constraint name (postgres) or message (sqlite) to tell which
// one failed
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return pgErr.ConstraintName + " " + pgErr.Detail, true
		}
		return "", false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return err.Error(), true
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return msg, true
	}
	return "", false
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND domain error and
// wraps anything else with the operation name
func notFoundOr(err error, entity string, id any, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(entity, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}
