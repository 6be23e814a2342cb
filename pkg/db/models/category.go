package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is a sorted waste type with its current price per kilogram.
type Category struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	PricePerKg int64     `gorm:"column:price_per_kg;not null" json:"price_per_kg"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
