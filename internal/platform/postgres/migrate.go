package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir      = "migrations"
	migrationTableName = "schema_migrations"
)

// slogGooseLogger forwards goose output to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements goose.Logger.
func (l slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf implements goose.Logger. Goose only calls it from its CLI helpers,
// which this package does not use, so it logs instead of exiting.
func (l slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate runs a goose command against the embedded migrations. Supported
// commands are up, down, reset, status and version.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger, command string) error {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(slogGooseLogger{logger: logger.With(slog.String("component", "migrations"))})
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, migrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, migrationsDir)
	case "reset":
		err = goose.ResetContext(ctx, db, migrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, migrationsDir)
	case "version":
		err = goose.VersionContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}

// Migrations lists the embedded migration sources, in version order.
func Migrations() ([]*goose.Migration, error) {
	goose.SetBaseFS(migrationsFS)
	return goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
}
