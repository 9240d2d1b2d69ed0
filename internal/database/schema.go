package database

import (
	"context"
	"fmt"
	"log/slog"

	"charityfeed/internal/config"
	"charityfeed/internal/middleware"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates tables for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema runs the SQL migrations in production and GORM AutoMigrate
// everywhere else.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if !cfg.IsProduction() {
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		return nil
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		return err
	}
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("run sql migrations: %w", err)
	}
	return nil
}
