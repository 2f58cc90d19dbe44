package main

import (
	"github.com/wfunc/gamebot/config"
	"github.com/wfunc/gamebot/game"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/monitor"
	"github.com/wfunc/gamebot/persistence"
	"github.com/wfunc/gamebot/server"
	"github.com/wfunc/gamebot/services"
	"github.com/wfunc/gamebot/skybox"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database when enabled
	var records *services.RecordService
	if cfg.Database.Enabled {
		var db persistence.Database
		switch cfg.Database.Driver {
		case "sql":
			db, err = persistence.NewPostgreSQL(
				cfg.Database.Postgres.Host,
				cfg.Database.Postgres.Port,
				cfg.Database.Postgres.User,
				cfg.Database.Postgres.Password,
				cfg.Database.Postgres.DBName,
			)
		default:
			db, err = persistence.NewGormPostgreSQL(
				cfg.Database.Postgres.Host,
				cfg.Database.Postgres.Port,
				cfg.Database.Postgres.User,
				cfg.Database.Postgres.Password,
				cfg.Database.Postgres.DBName,
			)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Info("Database connection successful.")
		records = services.NewRecordService(db)
	}

	// Metrics endpoint
	mon := monitor.NewMonitor("gamebot")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Scene renderer
	var renderer game.Renderer
	if cfg.Blockade.APIKey != "" {
		renderer = skybox.NewGenerator(skybox.Config{
			APIKey:        cfg.Blockade.APIKey,
			PusherKey:     cfg.Blockade.PusherKey,
			PusherCluster: cfg.Blockade.PusherCluster,
		})
	} else {
		logger.Log.Warn("No Blockade API key configured, scenes will not be rendered.")
	}

	// Start the bot server
	gameServer := server.NewGameServer(cfg, renderer, records, mon)
	logger.Log.Infof("Starting bot server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
