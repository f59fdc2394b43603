package finance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
)

// Idempotent operations
const (
	OperationCreatePayment   = "create_payment"
	OperationAllocatePayment = "allocate_payment"
)

// MaxIdempotencyKeyLength bounds client supplied keys
const MaxIdempotencyKeyLength = 128

// PaymentIdempotency is the write-once record of a payment request
type PaymentIdempotency struct {
	Key              string
	PaymentID        uuid.UUID
	Operation        string
	RequestHash      string
	ResponseSnapshot []byte
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
}

// NewPaymentIdempotency builds the record written with the payment
func NewPaymentIdempotency(key string, paymentID uuid.UUID, operation, requestHash string, snapshot []byte, actorID uuid.UUID) *PaymentIdempotency {
	return &PaymentIdempotency{
		Key:              key,
		PaymentID:        paymentID,
		Operation:        operation,
		RequestHash:      requestHash,
		ResponseSnapshot: snapshot,
		CreatedBy:        actorID,
		CreatedAt:        time.Now().UTC(),
	}
}

// ValidateIdempotencyKey checks a client supplied key
func ValidateIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return shared.NewValidationError("Idempotency key is required")
	}
	if len(key) > MaxIdempotencyKeyLength {
		return shared.NewValidationError("Idempotency key is too long").
			WithDetail("max_length", MaxIdempotencyKeyLength)
	}
	return nil
}

// HashRequest fingerprints a request so that a reused key with a different
// payload can be told apart from a retry
func HashRequest(operation string, request any) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(operation+":"), body...))
	return hex.EncodeToString(sum[:]), nil
}

// Matches reports whether a stored record belongs to the same request
func (r *PaymentIdempotency) Matches(operation, requestHash string) bool {
	return r.Operation == operation && r.RequestHash == requestHash
}
