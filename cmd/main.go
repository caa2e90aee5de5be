package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/celestiaorg/reelcast/internal/app"
	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/config"
	"github.com/celestiaorg/reelcast/internal/db"
	"github.com/celestiaorg/reelcast/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded")
	}
	logger.InitializeAndConfigure()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	dbOpts := db.OptionsFromConfig(cfg.Database)
	// sqlite is a development setup without the migration tool
	dbOpts.AutoMigrate = cfg.Database.SQLitePath != ""
	database, err := db.New(dbOpts)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		logger.Fatalf("Failed to get database handle: %v", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	caps, err := capability.NewSet(cfg.Vendors)
	if err != nil {
		logger.Fatalf("Failed to configure vendors: %v", err)
	}

	server, err := app.New(cfg, database, caps)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Errorf("Server error: %v", err)
	}
}
