package persistence

import (
	"fmt"

	"github.com/wfunc/gamebot/models"
	"gorm.io/gorm"
)

// Database stores finished game records and serves room aggregates.
type Database interface {
	SaveGameRecord(record *models.GameRecord) error
	RoomStats(hubID string) (*models.RoomStats, error)
	// LastGame returns ErrRecordNotFound when the room has no stored
	// games.
	LastGame(hubID string) (*models.GameRecord, error)
	RecentRecords(hubID string, limit int) ([]models.GameRecord, error)
	Transaction(fn func(tx *gorm.DB) error) error
	Close() error
}

var (
	ErrRecordNotFound          = fmt.Errorf("record not found")
	ErrTransactionsUnsupported = fmt.Errorf("transactions not supported by this driver")
)
