package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/banksampah-backend/pkg/enums"
)

// Resident is any actor known to the bank: residents who accrue balance as
// well as committee members and super admins. Balance is a cache of the
// resident's ledger history and is only written through the ledger package.
type Resident struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Username       string          `gorm:"column:username;not null;uniqueIndex" json:"username"`
	PasswordHash   string          `gorm:"column:password_hash;not null" json:"-"`
	FullName       string          `gorm:"column:full_name;not null" json:"full_name"`
	Nickname       *string         `gorm:"column:nickname" json:"nickname"`
	Address        *string         `gorm:"column:address" json:"address"`
	RT             *string         `gorm:"column:rt" json:"rt"`
	RW             *string         `gorm:"column:rw" json:"rw"`
	WhatsApp       *string         `gorm:"column:whatsapp" json:"whatsapp"`
	Role           enums.ActorRole `gorm:"column:role;type:text;not null;default:resident" json:"role"`
	Balance        int64           `gorm:"column:balance;not null;default:0" json:"balance"`
	BalanceVersion int64           `gorm:"column:balance_version;not null;default:0" json:"-"`
	Active         bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Resident) TableName() string { return "users" }
