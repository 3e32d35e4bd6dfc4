package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/quizgen-api/internal/config"
)

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_backend", cfg.Database.Backend,
		"queue_backend", cfg.Queue.Backend,
		"storage_provider", cfg.Storage.Provider,
		"llm_provider", cfg.LLM.Provider)

	if cfg.LLM.GeminiAPIKey != "" {
		slog.Debug("LLM configuration", "gemini_api_key_present", true)
	}

	return cfg, nil
}
