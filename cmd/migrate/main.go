package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bedtime-server/internal/config"
	"bedtime-server/internal/database"
	"bedtime-server/internal/logger"
	"bedtime-server/migrations"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down or version")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPgxPool(ctx, cfg, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	migrator := database.NewMigrator(database.MigrationConfig{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, pool)

	switch *direction {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			zap.L().Fatal("Migration up failed", zap.Error(err))
		}
	case "down":
		if err := migrator.Down(ctx); err != nil {
			zap.L().Fatal("Migration down failed", zap.Error(err))
		}
	case "version":
		version, dirty, err := migrator.Version(ctx)
		if err != nil {
			zap.L().Fatal("Failed to get migration version", zap.Error(err))
		}
		zap.L().Info("Current migration version",
			zap.Uint("version", version), zap.Bool("dirty", dirty))
	default:
		zap.L().Fatal("Unknown direction, expected up, down or version",
			zap.String("direction", *direction))
	}
}
