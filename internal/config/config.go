package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"      validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker"     validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm"        validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ops        OpsConfig        `mapstructure:"ops"        validate:"required"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// Backend "memory" keeps all data in process and ignores the other fields.
type DatabaseConfig struct {
	Backend         string        `mapstructure:"backend"           validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url"               validate:"required_if=Backend postgres,omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// RedisConfig configures the connection used by the redis queue backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"         validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix" validate:"required"`
}

// QueueConfig selects and tunes the job queue backend.
type QueueConfig struct {
	Backend      string        `mapstructure:"backend"       validate:"required,oneof=redis memory"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	StalledAfter time.Duration `mapstructure:"stalled_after" validate:"gt=0"`
	DedupeTTL    time.Duration `mapstructure:"dedupe_ttl"    validate:"gt=0"`
}

// WorkerConfig controls the in-process job consumers.
type WorkerConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	GenerationConcurrency int           `mapstructure:"generation_concurrency"  validate:"gt=0"`
	StalledCheckInterval  time.Duration `mapstructure:"stalled_check_interval"  validate:"gt=0"`
	JobTimeout            time.Duration `mapstructure:"job_timeout"             validate:"gt=0"`
}

// GenerationConfig holds the attempt and retry policy for page generation.
type GenerationConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts"           validate:"gt=0"`
	RetryDelaysMS        []int         `mapstructure:"retry_delays_ms"        validate:"required,min=1,dive,gte=0"`
	JitterMS             int           `mapstructure:"jitter_ms"              validate:"gte=0"`
	StaleGeneratingAfter time.Duration `mapstructure:"stale_generating_after" validate:"gt=0"`
	Model                string        `mapstructure:"model"                  validate:"required"`
	PromptVersion        string        `mapstructure:"prompt_version"         validate:"required"`
}

// RetryDelays returns the configured backoff table as durations.
func (g GenerationConfig) RetryDelays() []time.Duration {
	out := make([]time.Duration, len(g.RetryDelaysMS))
	for i, ms := range g.RetryDelaysMS {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"            validate:"required,oneof=gemini draft"`
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"      validate:"required_if=Provider gemini"`
	ModelName         string        `mapstructure:"model_name"          validate:"required"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"gt=0"`
	InputCostPer1K    float64       `mapstructure:"input_cost_per_1k"   validate:"gte=0"`
	OutputCostPer1K   float64       `mapstructure:"output_cost_per_1k"  validate:"gte=0"`
}

// StorageConfig configures object storage for source PDFs and page images.
type StorageConfig struct {
	Provider        string        `mapstructure:"provider"         validate:"required,oneof=gcs memory"`
	Bucket          string        `mapstructure:"bucket"           validate:"required_if=Provider gcs"`
	SignTTL         time.Duration `mapstructure:"sign_ttl"         validate:"gt=0"`
	CredentialsFile string        `mapstructure:"credentials_file"`
}

// OpsConfig holds defaults for the operator overview.
type OpsConfig struct {
	WindowHours       int `mapstructure:"window_hours"        validate:"gt=0,lte=8760"`
	RecentErrorsLimit int `mapstructure:"recent_errors_limit" validate:"gt=0"`
}

// TracingConfig controls OpenTelemetry trace export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"     validate:"omitempty,oneof=stdout none"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
	ServiceName string  `mapstructure:"service_name"`
}
