package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account carries the materialized token balance for one identity.
// The balance column is mutated only through the ledger guard's conditional
// updates; everything else treats it as read-only.
type Account struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Balance   int       `gorm:"column:balance;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
