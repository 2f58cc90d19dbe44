package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/gamebot/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL stores game records through GORM.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := models.GormGameRecord{
		GameID:    record.GameID,
		HubID:     record.HubID,
		GameType:  record.GameType,
		Players:   pq.StringArray(record.Players),
		Outcome:   record.Outcome,
		Scenes:    record.Scenes,
		Duration:  record.Duration(),
		StartedAt: record.StartedAt,
		EndedAt:   record.EndedAt,
	}
	return p.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

func (p *GormPostgreSQL) RoomStats(hubID string) (*models.RoomStats, error) {
	var stats models.RoomStats
	err := p.db.Model(&models.GormGameRecord{}).
		Where("hub_id = ?", hubID).
		Select("COUNT(*) AS total_games, COALESCE(SUM(scenes), 0) AS total_scenes, COALESCE(SUM(duration), 0) AS play_time").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (p *GormPostgreSQL) LastGame(hubID string) (*models.GameRecord, error) {
	records, err := p.RecentRecords(hubID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return &records[0], nil
}

func (p *GormPostgreSQL) RecentRecords(hubID string, limit int) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	err := p.db.Where("hub_id = ?", hubID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.GameRecord{
			GameID:    row.GameID,
			HubID:     row.HubID,
			GameType:  row.GameType,
			Players:   []string(row.Players),
			Outcome:   row.Outcome,
			Scenes:    row.Scenes,
			StartedAt: row.StartedAt,
			EndedAt:   row.EndedAt,
		})
	}
	return records, nil
}

func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
