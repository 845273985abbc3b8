package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/enums"
)

// Track is a generated music artifact. The plays/likes counters are relaxed:
// they are bumped with single-statement increments and never interact with
// the token ledger.
type Track struct {
	ID              uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID       uuid.UUID   `gorm:"column:creator_id;type:uuid;not null;index:idx_tracks_creator"`
	Title           string      `gorm:"column:title;not null"`
	Prompt          string      `gorm:"column:prompt;not null"`
	AudioURL        string      `gorm:"column:audio_url;not null"`
	DurationSeconds int         `gorm:"column:duration_seconds;not null;default:0"`
	Genre           enums.Genre `gorm:"column:genre;type:track_genre;not null"`
	Mood            enums.Mood  `gorm:"column:mood;type:track_mood;not null"`
	IsPublic        bool        `gorm:"column:is_public;not null;default:true;index:idx_tracks_public"`
	Tags            string      `gorm:"column:tags;not null;default:''"`
	Plays           int64       `gorm:"column:plays;not null;default:0"`
	Likes           int64       `gorm:"column:likes;not null;default:0"`
	CreatedAt       time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (t *Track) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
