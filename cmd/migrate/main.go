package main

// Apply record store migrations:
//   RECORD_STORE=postgres go run ./cmd/migrate
//   RECORD_STORE=sqlite go run ./cmd/migrate

import (
	"context"
	"os"
	"path/filepath"

	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/storage/db"
	"resumind-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	driver, dsn := db.DriverSQLite, cfg.SQLitePath
	if cfg.RecordStore == "postgres" {
		driver, dsn = db.DriverPostgres, cfg.DatabaseURL
	} else if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			telemetry.Error("migrate.mkdir_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, driver, dsn, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"driver": driver, "error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, driver); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"driver": driver, "error": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"driver": driver})
}
