package models

import (
	"time"

	"github.com/google/uuid"
)

// CommitteeEarning mirrors a transaction's committee fee, one row per transaction.
type CommitteeEarning struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex" json:"transaction_id"`
	Amount        int64     `gorm:"column:amount;not null" json:"amount"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}
