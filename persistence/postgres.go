package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/gamebot/models"
	"gorm.io/gorm"
)

const queryTimeout = 5 * time.Second

// PostgreSQL stores game records over database/sql directly, for
// deployments that prefer plain SQL to the ORM.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id VARCHAR(64) UNIQUE NOT NULL,
            hub_id VARCHAR(255) NOT NULL,
            game_type VARCHAR(100) NOT NULL,
            players TEXT[] NOT NULL,
            outcome VARCHAR(50) NOT NULL,
            scenes INT DEFAULT 0,
            duration INT DEFAULT 0,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_game_records_hub_id ON game_records(hub_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_ended_at ON game_records(ended_at);
    `)
	return err
}

func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO game_records (game_id, hub_id, game_type, players, outcome, scenes, duration, started_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := p.db.ExecContext(ctx, query,
		record.GameID, record.HubID, record.GameType, pq.Array(record.Players),
		record.Outcome, record.Scenes, record.Duration(),
		record.StartedAt, record.EndedAt)
	return err
}

func (p *PostgreSQL) RoomStats(hubID string) (*models.RoomStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        SELECT COUNT(*), COALESCE(SUM(scenes), 0), COALESCE(SUM(duration), 0)
        FROM game_records WHERE hub_id = $1
    `
	var stats models.RoomStats
	err := p.db.QueryRowContext(ctx, query, hubID).
		Scan(&stats.TotalGames, &stats.TotalScenes, &stats.PlayTime)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (p *PostgreSQL) LastGame(hubID string) (*models.GameRecord, error) {
	records, err := p.RecentRecords(hubID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return &records[0], nil
}

func (p *PostgreSQL) RecentRecords(hubID string, limit int) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        SELECT game_id, hub_id, game_type, players, outcome, scenes, started_at, ended_at
        FROM game_records WHERE hub_id = $1
        ORDER BY ended_at DESC LIMIT $2
    `
	rows, err := p.db.QueryContext(ctx, query, hubID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var record models.GameRecord
		var players pq.StringArray
		err := rows.Scan(&record.GameID, &record.HubID, &record.GameType, &players,
			&record.Outcome, &record.Scenes, &record.StartedAt, &record.EndedAt)
		if err != nil {
			return nil, err
		}
		record.Players = []string(players)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Transaction is a GORM facility; the plain SQL driver does not expose
// a *gorm.DB to run one on.
func (p *PostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return ErrTransactionsUnsupported
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
