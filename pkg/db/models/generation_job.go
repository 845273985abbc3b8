package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/enums"
)

// GenerationJob tracks one metered generation request through its state
// machine. The unique (account_id, idempotency_key) index is the authoritative
// duplicate-submit guard.
type GenerationJob struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	AccountID         uuid.UUID                `gorm:"column:account_id;type:uuid;not null;index:idx_generation_jobs_account;uniqueIndex:ux_generation_jobs_account_idem,priority:1"`
	Prompt            string                   `gorm:"column:prompt;not null"`
	Title             string                   `gorm:"column:title;not null"`
	Genre             enums.Genre              `gorm:"column:genre;type:track_genre;not null"`
	Mood              enums.Mood               `gorm:"column:mood;type:track_mood;not null"`
	IsPublic          bool                     `gorm:"column:is_public;not null;default:true"`
	LedgerEntryID     uuid.UUID                `gorm:"column:ledger_entry_id;type:uuid;not null"`
	State             enums.GenerationJobState `gorm:"column:state;type:generation_job_state;not null"`
	TrackID           *uuid.UUID               `gorm:"column:track_id;type:uuid"`
	IdempotencyKey    *string                  `gorm:"column:idempotency_key;uniqueIndex:ux_generation_jobs_account_idem,priority:2"`
	FailureReason     *string                  `gorm:"column:failure_reason"`
	ProviderStartedAt *time.Time               `gorm:"column:provider_started_at"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (j *GenerationJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
