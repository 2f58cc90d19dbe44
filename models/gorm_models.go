package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormGameRecord is the stored shape of a finished game.
type GormGameRecord struct {
	gorm.Model
	GameID    string         `gorm:"uniqueIndex;not null"`
	HubID     string         `gorm:"index;not null"`
	GameType  string         `gorm:"not null"`
	Players   pq.StringArray `gorm:"type:text[]"`
	Outcome   string         `gorm:"not null"`
	Scenes    int            `gorm:"default:0"`
	Duration  int            `gorm:"default:0"` // seconds
	StartedAt time.Time
	EndedAt   time.Time
}

func (GormGameRecord) TableName() string {
	return "game_records"
}
