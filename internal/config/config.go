package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all pipeline configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// DataDir is where the embedded database and vendor caches live
	DataDir string `env:"ENGAGIC_DATA_DIR" envDefault:"./data"`

	LLM       LLMConfig
	Sync      SyncConfig
	Processor ProcessorConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// LLMConfig holds Gemini configuration for the summarizer
type LLMConfig struct {
	// APIKey is required for any summarization work
	APIKey string `env:"LLM_API_KEY"`

	// SmallModel handles documents under the size/complexity threshold
	SmallModel string `env:"LLM_SMALL_MODEL" envDefault:"gemini-2.5-flash-lite"`
	// LargeModel handles everything else
	LargeModel string `env:"LLM_LARGE_MODEL" envDefault:"gemini-2.5-flash"`

	Temperature     float64 `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	MaxOutputTokens int     `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"8192"`

	// BatchEnabled submits item-level work as Gemini batch jobs
	BatchEnabled bool          `env:"LLM_BATCH_ENABLED" envDefault:"true"`
	BatchTimeout time.Duration `env:"LLM_BATCH_TIMEOUT" envDefault:"30m"`

	// NetworkDisabled short-circuits all LLM calls (for tests)
	NetworkDisabled bool `env:"LLM_NETWORK_DISABLED" envDefault:"false"`
}

// IsEnabled returns true if the summarizer can make network calls
func (l *LLMConfig) IsEnabled() bool {
	return !l.NetworkDisabled && l.APIKey != ""
}

// SyncConfig holds conductor sync-loop settings
type SyncConfig struct {
	// Interval between full sync cycles
	Interval time.Duration `env:"SYNC_INTERVAL" envDefault:"168h"`
	// ErrorCooldown applies after a cycle fails outright
	ErrorCooldown time.Duration `env:"SYNC_ERROR_COOLDOWN" envDefault:"48h"`

	// WindowDaysBack / WindowDaysForward bound adapter fetch windows
	WindowDaysBack    int `env:"SYNC_WINDOW_DAYS_BACK" envDefault:"7"`
	WindowDaysForward int `env:"SYNC_WINDOW_DAYS_FORWARD" envDefault:"14"`

	// NYCLegistarToken unlocks the NYC legistar API
	NYCLegistarToken string `env:"NYC_LEGISTAR_TOKEN"`

	// ParallelVendors processes vendor groups concurrently when true.
	// Default single-threaded to be polite to municipal infrastructure.
	ParallelVendors bool `env:"SYNC_PARALLEL_VENDORS" envDefault:"false"`
}

// ProcessorConfig holds processing-worker settings
type ProcessorConfig struct {
	// IdleSleep between polls when the queue is empty
	IdleSleep time.Duration `env:"PROCESSOR_IDLE_SLEEP" envDefault:"5s"`
	// ErrorSleep after a processing exception
	ErrorSleep time.Duration `env:"PROCESSOR_ERROR_SLEEP" envDefault:"2s"`
	// MaxRetries before a queue entry is permanently failed
	MaxRetries int `env:"PROCESSOR_MAX_RETRIES" envDefault:"3"`
	// AutoDetectItems runs the structural chunker on large packets
	AutoDetectItems bool `env:"PROCESSOR_AUTO_DETECT_ITEMS" envDefault:"true"`
	// StaleThreshold recovers entries stuck in processing on startup
	StaleThreshold time.Duration `env:"PROCESSOR_STALE_THRESHOLD" envDefault:"2h"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("llm_enabled", cfg.LLM.IsEnabled()),
		slog.Bool("batch_enabled", cfg.LLM.BatchEnabled),
	)

	return cfg, nil
}
