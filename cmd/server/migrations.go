package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/quizgen-api/internal/config"
	"github.com/phrazzld/quizgen-api/internal/platform/postgres"
)

// runMigrations executes a goose command against the configured database.
// It is called from main when the -migrate flag is set.
func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger, command string) error {
	if cfg.Database.Backend != "postgres" {
		return fmt.Errorf("migrations need the postgres backend, got %q", cfg.Database.Backend)
	}

	db, err := setupAppDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
		}
	}()

	logger.Info("Executing migrations", "command", command)
	if err := postgres.Migrate(ctx, db, logger, command); err != nil {
		return err
	}
	logger.Info("Migrations finished", "command", command)
	return nil
}
