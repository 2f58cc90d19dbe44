package services

import (
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/persistence"
)

// RecordService writes finished games to storage and serves per-room
// aggregates for the admin surface.
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// SaveOutcome persists one finished game.
func (s *RecordService) SaveOutcome(record *models.GameRecord) error {
	if err := s.db.SaveGameRecord(record); err != nil {
		logger.Log.Errorf("Room %s: saving game record failed: %v", record.HubID, err)
		return err
	}
	logger.Log.Infof("Room %s: recorded %s game, outcome %s, %d scenes, %ds",
		record.HubID, record.GameType, record.Outcome, record.Scenes, record.Duration())
	return nil
}

// Stats aggregates the stored games of one room.
func (s *RecordService) Stats(hubID string) (*models.RoomStats, error) {
	return s.db.RoomStats(hubID)
}

// LastGame returns the most recent finished game of one room, or
// persistence.ErrRecordNotFound.
func (s *RecordService) LastGame(hubID string) (*models.GameRecord, error) {
	return s.db.LastGame(hubID)
}

// Recent lists the latest finished games of one room.
func (s *RecordService) Recent(hubID string, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.db.RecentRecords(hubID, limit)
}
