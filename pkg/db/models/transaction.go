package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one weighed drop-off line. Rows are immutable.
type Transaction struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ResidentID    uuid.UUID       `gorm:"column:resident_id;type:uuid;not null;index" json:"resident_id"`
	CategoryID    uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index" json:"category_id"`
	WeightKg      decimal.Decimal `gorm:"column:weight_kg;type:numeric(12,3);not null" json:"weight_kg"`
	PricePerKg    int64           `gorm:"column:price_per_kg;not null" json:"price_per_kg"`
	TotalAmount   int64           `gorm:"column:total_amount;not null" json:"total_amount"`
	CommitteeFee  int64           `gorm:"column:committee_fee;not null" json:"committee_fee"`
	NetAmount     int64           `gorm:"column:net_amount;not null" json:"net_amount"`
	BalanceBefore int64           `gorm:"column:balance_before;not null" json:"balance_before"`
	BalanceAfter  int64           `gorm:"column:balance_after;not null" json:"balance_after"`
	ProcessedBy   uuid.UUID       `gorm:"column:processed_by;type:uuid;not null" json:"processed_by"`
	BatchID       *uuid.UUID      `gorm:"column:batch_id;type:uuid;index" json:"batch_id"`
	Note          *string         `gorm:"column:note" json:"note"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;index" json:"created_at"`
}
