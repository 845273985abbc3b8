package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/enums"
)

// LedgerEntry records one balance-affecting event. Rows are append-only:
// after creation only the status column may change, and only through the
// pending -> settled / pending -> reversed transitions.
type LedgerEntry struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AccountID uuid.UUID              `gorm:"column:account_id;type:uuid;not null;index:idx_ledger_entries_account"`
	Amount    int                    `gorm:"column:amount;not null"`
	Kind      enums.LedgerEntryKind  `gorm:"column:kind;type:ledger_entry_kind;not null"`
	Status    enums.LedgerEntryState `gorm:"column:status;type:ledger_entry_status;not null"`
	Reference string                 `gorm:"column:reference;not null"`
	Metadata  json.RawMessage        `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
