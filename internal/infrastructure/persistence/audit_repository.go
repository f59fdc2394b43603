package persistence

import (
	"context"
	"fmt"

	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements AuditLogRepository using GORM.
// Entries are never updated or removed.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append stores an entry
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *audit.AuditLog) error {
	model, err := models.AuditLogModelFromDomain(entry)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// FindByEntity lists the entries recorded for one entity, oldest first
func (r *GormAuditLogRepository) FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]audit.AuditLog, error) {
	var rows []models.AuditLogModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find audit logs: %w", err)
	}
	return auditLogsToDomain(rows)
}

// FindAll lists entries, newest first. Filters accepts action, entity_type
// and actor_id.
func (r *GormAuditLogRepository) FindAll(ctx context.Context, filter shared.Filter) ([]audit.AuditLog, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.AuditLogModel{})
	if action, ok := filter.Filters["action"].(string); ok && action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType, ok := filter.Filters["entity_type"].(string); ok && entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if actorID, ok := filter.Filters["actor_id"].(uuid.UUID); ok {
		query = query.Where("actor_id = ?", actorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	var rows []models.AuditLogModel
	err := query.
		Order("created_at " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	out, err := auditLogsToDomain(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func auditLogsToDomain(rows []models.AuditLogModel) ([]audit.AuditLog, error) {
	out := make([]audit.AuditLog, len(rows))
	for i := range rows {
		l, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out[i] = *l
	}
	return out, nil
}

var _ audit.AuditLogRepository = (*GormAuditLogRepository)(nil)
