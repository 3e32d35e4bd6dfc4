// Package main implements the entry point for the quizgen API server,
// which turns textbook PDFs into reviewed multiple-choice questions and
// runs the background generation workers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	migrate := flag.String("migrate", "", "run a migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrate); err != nil {
		log.Printf("quizgen-api: %v", err)
		os.Exit(1)
	}
}

// run loads configuration and either applies a migration command or serves
// until ctx is cancelled.
func run(ctx context.Context, migrateCmd string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, logger, migrateCmd)
	}

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
