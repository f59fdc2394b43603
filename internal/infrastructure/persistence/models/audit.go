package models

import (
	"encoding/json"
	"fmt"

	"github.com/erp/poscore/internal/domain/audit"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLogModel is an append-only audit entry
type AuditLogModel struct {
	BaseModel
	ActorID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Action     audit.Action   `gorm:"type:varchar(50);not null;index"`
	EntityType string         `gorm:"type:varchar(30);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Reason     string         `gorm:"type:varchar(500)"`
	Details    datatypes.JSON `gorm:""`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditLog
func (m *AuditLogModel) ToDomain() (*audit.AuditLog, error) {
	details := make(map[string]any)
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &details); err != nil {
			return nil, fmt.Errorf("decode audit details %s: %w", m.ID, err)
		}
	}
	return &audit.AuditLog{
		BaseEntity: m.BaseModel.ToDomain(),
		ActorID:    m.ActorID,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Reason:     m.Reason,
		Details:    details,
	}, nil
}

// AuditLogModelFromDomain creates a persistence model from a domain AuditLog
func AuditLogModelFromDomain(l *audit.AuditLog) (*AuditLogModel, error) {
	details, err := json.Marshal(l.DetailsCopy())
	if err != nil {
		return nil, fmt.Errorf("encode audit details: %w", err)
	}
	m := &AuditLogModel{
		ActorID:    l.ActorID,
		Action:     l.Action,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Reason:     l.Reason,
		Details:    datatypes.JSON(details),
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m, nil
}
