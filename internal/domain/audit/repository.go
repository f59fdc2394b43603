package audit

import (
	"context"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
)

// AuditLogRepository is append-only
type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditLog) error
	FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]AuditLog, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]AuditLog, int64, error)
}
