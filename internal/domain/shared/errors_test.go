package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_WithDetailCopies(t *testing.T) {
	err := ErrInsufficientStock.WithDetail("sku", "A1")

	assert.Equal(t, "A1", err.Details["sku"])
	assert.Empty(t, ErrInsufficientStock.Details, "shared sentinel must not be mutated")
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("load sale: %w", NewNotFoundError("Sale", 7))
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeValidation))
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
}

func TestNewConcurrencyConflict(t *testing.T) {
	err := NewConcurrencyConflict("Sale", 4)
	assert.Equal(t, CodeConcurrencyConflict, err.Code)
	assert.Equal(t, int64(4), err.Details["current_row_version"])

	unknown := NewConcurrencyConflict("Sale", -1)
	assert.NotContains(t, unknown.Details, "current_row_version")
}

func TestDomainError_WithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDomainError(CodeInternal, "Database error").WithCause(cause)
	assert.Equal(t, "Database error: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestBaseAggregateRoot_CheckRowVersion(t *testing.T) {
	root := NewBaseAggregateRoot()
	id, version := root.VersionKey()
	require.Equal(t, root.ID, id)
	require.Equal(t, int64(1), version)

	assert.NoError(t, root.CheckRowVersion("Sale", nil))
	current := int64(1)
	assert.NoError(t, root.CheckRowVersion("Sale", &current))
	stale := int64(0)
	assert.True(t, IsCode(root.CheckRowVersion("Sale", &stale), CodeConcurrencyConflict))

	root.Advance(2)
	assert.True(t, IsCode(root.CheckRowVersion("Sale", &current), CodeConcurrencyConflict))
}

func TestActor(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole(" ADMIN "))
	assert.Equal(t, RoleStaff, ParseRole("manager"))

	staff := NewActor(uuid.New(), RoleStaff)
	assert.False(t, staff.IsPrivileged())
	assert.True(t, IsCode(staff.RequireAdmin("unlock"), CodeForbidden))
	assert.NoError(t, NewActor(uuid.New(), RoleAdmin).RequireAdmin("unlock"))
	assert.True(t, IsCode(Actor{}.Validate(), CodeUnauthorized))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "0.01", RoundMoney(decimal.RequireFromString("0.005")).String())
	assert.Equal(t, "-0.01", RoundMoney(decimal.RequireFromString("-0.005")).String())
	assert.Equal(t, "31.5", SumMoney(decimal.RequireFromString("30"), decimal.RequireFromString("1.5")).String())
}
