package audit

import (
	"maps"
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
)

// Action names a privileged or financially relevant operation
type Action string

const (
	ActionSaleCreatedWithOverride Action = "sale.created_with_override"
	ActionSaleDeleted             Action = "sale.deleted"
	ActionSaleUnlocked            Action = "sale.unlocked"
	ActionSaleRestored            Action = "sale.restored"
	ActionSaleReturned            Action = "sale.returned"
	ActionPaymentStatusChanged    Action = "payment.status_changed"
	ActionPaymentUpdated          Action = "payment.updated"
	ActionPaymentDeleted          Action = "payment.deleted"
	ActionStockAdjusted           Action = "stock.adjusted"
	ActionPriceChanged            Action = "product.price_changed"
	ActionCustomerRecomputed      Action = "customer.recomputed"
)

// Entity types referenced by audit entries
const (
	EntitySale     = "sale"
	EntityPayment  = "payment"
	EntityProduct  = "product"
	EntityCustomer = "customer"
)

// AuditLog is an append-only record of who did what to which entity.
type AuditLog struct {
	shared.BaseEntity
	ActorID    uuid.UUID
	Action     Action
	EntityType string
	EntityID   uuid.UUID
	Reason     string
	Details    map[string]any
}

// NewAuditLog creates an audit entry
func NewAuditLog(actor shared.Actor, action Action, entityType string, entityID uuid.UUID, reason string) (*AuditLog, error) {
	if action == "" {
		return nil, shared.NewValidationError("Audit action is required")
	}
	if entityType == "" || entityID == uuid.Nil {
		return nil, shared.NewValidationError("Audit entity is required")
	}
	return &AuditLog{
		BaseEntity: shared.NewBaseEntity(),
		ActorID:    actor.ID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Reason:     strings.TrimSpace(reason),
		Details:    make(map[string]any),
	}, nil
}

// With attaches a detail and returns the entry for chaining
func (l *AuditLog) With(key string, value any) *AuditLog {
	if l.Details == nil {
		l.Details = make(map[string]any)
	}
	l.Details[key] = value
	return l
}

// DetailsCopy returns a copy of the details map
func (l *AuditLog) DetailsCopy() map[string]any {
	out := make(map[string]any, len(l.Details))
	maps.Copy(out, l.Details)
	return out
}
