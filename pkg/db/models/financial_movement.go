package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

// FinancialMovement is a deposit or withdrawal against a resident balance.
type FinancialMovement struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ResidentID    uuid.UUID          `gorm:"column:resident_id;type:uuid;not null;index" json:"resident_id"`
	Type          enums.MovementType `gorm:"column:type;type:text;not null" json:"type"`
	Amount        int64              `gorm:"column:amount;not null" json:"amount"`
	BalanceBefore int64              `gorm:"column:balance_before;not null" json:"balance_before"`
	BalanceAfter  int64              `gorm:"column:balance_after;not null" json:"balance_after"`
	ProcessedBy   uuid.UUID          `gorm:"column:processed_by;type:uuid;not null" json:"processed_by"`
	Note          *string            `gorm:"column:note" json:"note"`
	CreatedAt     time.Time          `gorm:"column:created_at;not null;index" json:"created_at"`
}
