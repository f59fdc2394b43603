package finance

import (
	"testing"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCashPayment(t *testing.T, amount string) *Payment {
	t.Helper()
	saleID := uuid.New()
	p, err := NewPayment(NewPaymentParams{
		SaleID:    &saleID,
		Amount:    dec(amount),
		Mode:      PaymentModeCash,
		CreatedBy: uuid.New(),
	})
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	t.Run("cash clears immediately", func(t *testing.T) {
		p := newCashPayment(t, "31.504")
		assert.Equal(t, PaymentStatusCleared, p.Status)
		assert.True(t, p.Amount.Equal(dec("31.50")))
		assert.True(t, p.CountsTowardTotals())
		assert.False(t, p.PaymentDate.IsZero())
	})

	t.Run("cheque starts pending", func(t *testing.T) {
		customerID := uuid.New()
		p, err := NewPayment(NewPaymentParams{CustomerID: &customerID, Amount: dec("5"), Mode: PaymentModeCheque})
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusPending, p.Status)
		assert.False(t, p.CountsTowardTotals())
	})

	t.Run("explicit status", func(t *testing.T) {
		customerID := uuid.New()
		pending := PaymentStatusPending
		p, err := NewPayment(NewPaymentParams{CustomerID: &customerID, Amount: dec("5"), Mode: PaymentModeCard, Status: &pending})
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusPending, p.Status)
	})

	saleID := uuid.New()
	void := PaymentStatusVoid
	tests := []struct {
		name   string
		params NewPaymentParams
	}{
		{"zero amount", NewPaymentParams{SaleID: &saleID, Amount: decimal.Zero, Mode: PaymentModeCash}},
		{"negative amount", NewPaymentParams{SaleID: &saleID, Amount: dec("-1"), Mode: PaymentModeCash}},
		{"unknown mode", NewPaymentParams{SaleID: &saleID, Amount: dec("1"), Mode: "barter"}},
		{"no target", NewPaymentParams{Amount: dec("1"), Mode: PaymentModeCash}},
		{"terminal start", NewPaymentParams{SaleID: &saleID, Amount: dec("1"), Mode: PaymentModeCash, Status: &void}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayment(tt.params)
			assert.True(t, shared.IsCode(err, shared.CodeValidation), "got %v", err)
		})
	}
}

func TestPaymentStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentStatusPending, PaymentStatusCleared, true},
		{PaymentStatusPending, PaymentStatusReturned, true},
		{PaymentStatusPending, PaymentStatusVoid, true},
		{PaymentStatusCleared, PaymentStatusReturned, true},
		{PaymentStatusCleared, PaymentStatusVoid, true},
		{PaymentStatusCleared, PaymentStatusPending, false},
		{PaymentStatusReturned, PaymentStatusCleared, false},
		{PaymentStatusVoid, PaymentStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.True(t, PaymentStatusVoid.IsTerminal())
	assert.False(t, PaymentStatusReturned.IsActive())
}

func TestPayment_TransitionTo(t *testing.T) {
	p := newCashPayment(t, "10")

	changed, err := p.TransitionTo(PaymentStatusCleared)
	require.NoError(t, err)
	assert.False(t, changed, "same status is a no-op")

	changed, err = p.TransitionTo(PaymentStatusReturned)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, p.CountsTowardTotals())

	_, err = p.TransitionTo(PaymentStatusCleared)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))

	_, err = p.TransitionTo("lost")
	assert.True(t, shared.IsCode(err, shared.CodeValidation))
}

func TestPayment_ChangeAmount(t *testing.T) {
	p := newCashPayment(t, "10")
	err := p.ChangeAmount(dec("12"))
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState), "cleared amounts are immutable")

	customerID := uuid.New()
	cheque, err := NewPayment(NewPaymentParams{CustomerID: &customerID, Amount: dec("5"), Mode: PaymentModeCheque})
	require.NoError(t, err)
	require.NoError(t, cheque.ChangeAmount(dec("7.555")))
	assert.True(t, cheque.Amount.Equal(dec("7.56")))
	assert.True(t, shared.IsCode(cheque.ChangeAmount(decimal.Zero), shared.CodeValidation))
}

func TestPayment_MarkDeleted(t *testing.T) {
	p := newCashPayment(t, "10")
	actor := shared.NewActor(uuid.New(), shared.RoleAdmin)
	now := time.Now().UTC()

	assert.True(t, p.MarkDeleted(actor, now))
	assert.Equal(t, PaymentStatusVoid, p.Status)
	assert.False(t, p.CountsTowardTotals())
	assert.False(t, p.MarkDeleted(actor, now))

	err := p.UpdateDetails(PaymentModeCard, "", time.Time{}, "")
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
}

func TestIdempotency(t *testing.T) {
	assert.Error(t, ValidateIdempotencyKey("  "))
	assert.Error(t, ValidateIdempotencyKey(string(make([]byte, MaxIdempotencyKeyLength+1))))
	assert.NoError(t, ValidateIdempotencyKey("order-42"))

	type body struct {
		Amount string `json:"amount"`
	}
	h1, err := HashRequest(OperationCreatePayment, body{Amount: "10"})
	require.NoError(t, err)
	h2, err := HashRequest(OperationCreatePayment, body{Amount: "10"})
	require.NoError(t, err)
	h3, err := HashRequest(OperationAllocatePayment, body{Amount: "10"})
	require.NoError(t, err)
	h4, err := HashRequest(OperationCreatePayment, body{Amount: "11"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4)

	record := NewPaymentIdempotency("order-42", uuid.New(), OperationCreatePayment, h1, []byte(`{}`), uuid.New())
	assert.True(t, record.Matches(OperationCreatePayment, h2))
	assert.False(t, record.Matches(OperationCreatePayment, h4))
}
