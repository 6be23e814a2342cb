package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

// OutboxEvent is a ledger event waiting for, or done with, publication.
// Rows are written in the same transaction as the balance change they
// describe; the publisher only ever updates the delivery columns.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime;index"`

	PublishedAt  *time.Time `gorm:"column:published_at;index"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Delivered reports whether the publisher has acknowledged the event.
func (e OutboxEvent) Delivered() bool { return e.PublishedAt != nil }
