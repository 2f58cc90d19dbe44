package models

import (
	"time"
)

// GameRecord captures one finished game for persistence.
type GameRecord struct {
	GameID    string    `json:"game_id"`
	HubID     string    `json:"hub_id"`
	GameType  string    `json:"game_type"`
	Players   []string  `json:"players"`
	Outcome   string    `json:"outcome"` // ended/abandoned
	Scenes    int       `json:"scenes"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duration of the game in seconds.
func (r *GameRecord) Duration() int {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return int(r.EndedAt.Sub(r.StartedAt).Seconds())
}

// RoomStats aggregates the persisted records of one room.
type RoomStats struct {
	TotalGames  int `json:"total_games"`
	TotalScenes int `json:"total_scenes"`
	PlayTime    int `json:"play_time"` // total seconds
}
