package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

type AuditLogEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ActorID   uuid.UUID         `gorm:"column:actor_id;type:uuid;not null;index" json:"actor_id"`
	Action    enums.AuditAction `gorm:"column:action;type:text;not null" json:"action"`
	Details   string            `gorm:"column:details;type:text;not null" json:"details"`
	CreatedAt time.Time         `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (AuditLogEntry) TableName() string { return "audit_log" }
