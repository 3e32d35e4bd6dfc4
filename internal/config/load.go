package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "QUIZGEN"

// defaults lists every key Load understands. Keys without a meaningful
// default are still listed so viper binds their environment variables.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.shutdown_timeout": "15s",
	"server.max_upload_bytes": int64(50 << 20),

	"database.backend":           "postgres",
	"database.url":               "",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": "5m",

	"redis.addr":       "localhost:6379",
	"redis.password":   "",
	"redis.db":         0,
	"redis.key_prefix": "quizgen",

	"queue.backend":       "redis",
	"queue.poll_interval": "500ms",
	"queue.stalled_after": "10m",
	"queue.dedupe_ttl":    "24h",

	"worker.enabled":                true,
	"worker.generation_concurrency": 5,
	"worker.stalled_check_interval": "1m",
	"worker.job_timeout":            "5m",

	"generation.max_attempts":           3,
	"generation.retry_delays_ms":        []int{5000, 15000, 45000},
	"generation.jitter_ms":              1000,
	"generation.stale_generating_after": "15m",
	"generation.model":                  "gemini-2.5-flash",
	"generation.prompt_version":         "v1",

	"llm.provider":            "gemini",
	"llm.gemini_api_key":      "",
	"llm.model_name":          "gemini-2.5-flash",
	"llm.requests_per_minute": 60,
	"llm.timeout":             "90s",
	"llm.input_cost_per_1k":   0.0007,
	"llm.output_cost_per_1k":  0.0028,

	"storage.provider":         "gcs",
	"storage.bucket":           "",
	"storage.sign_ttl":         "24h",
	"storage.credentials_file": "",

	"ops.window_hours":        24,
	"ops.recent_errors_limit": 20,

	"tracing.enabled":      false,
	"tracing.exporter":     "none",
	"tracing.sample_ratio": 0.1,
	"tracing.service_name": "quizgen-api",
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
