// Command migrate applies or rolls back the prediction log indexes.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"etaservice/internal/config"
	"etaservice/pkg/database"
	"etaservice/pkg/logger"
)

func main() {
	down := flag.Int("down", -1, "roll the prediction log schema back to this version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  "text",
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewMongoDB(ctx, cfg.Database.MongoConfig())
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Database, cfg.Database.Retention, appLogger)
	if *down >= 0 {
		err = migrator.Down(ctx, *down)
	} else {
		err = migrator.Up(ctx)
	}
	if err != nil {
		appLogger.WithError(err).Fatal("Migration failed")
	}
}
