package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	Jobs        JobsConfig       `toml:"jobs"`
	Logging     LoggingConfig    `toml:"logging"`
}

// StorageConfig contains SQLite database configuration
type StorageConfig struct {
	Path          string `toml:"path" validate:"required"` // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`            // Page cache size in MB
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`          // PRAGMA busy_timeout
	WALMode       bool   `toml:"wal_mode"`                 // Enable WAL journal mode
}

// CrawlerConfig contains crawl defaults applied when a scrape request omits them
type CrawlerConfig struct {
	UserAgent      string        `toml:"user_agent"`                                         // Default user agent string
	MaxPages       int           `toml:"max_pages" validate:"min=1"`                         // Default page limit per crawl
	MaxDepth       int           `toml:"max_depth" validate:"min=0"`                         // Default crawl depth
	MaxConcurrency int           `toml:"max_concurrency" validate:"min=1"`                   // Concurrent fetches per crawl
	RequestTimeout time.Duration `toml:"request_timeout"`                                    // HTTP request timeout
	RequestDelay   time.Duration `toml:"request_delay"`                                      // Minimum delay between requests to the same host
	MaxRetries     int           `toml:"max_retries" validate:"min=0"`                       // Retry attempts for retryable HTTP failures
	RetryBaseDelay time.Duration `toml:"retry_base_delay"`                                   // Base delay for exponential backoff
	ScrapeMode     string        `toml:"scrape_mode" validate:"oneof=fetch playwright auto"` // Default render mode
	BrowserPool    int           `toml:"browser_pool"`                                       // Chromedp instances for playwright mode
}

// EmbeddingsConfig contains embedding provider configuration
type EmbeddingsConfig struct {
	Model     string `toml:"model"`     // Model spec: [provider:]model, e.g. "openai:text-embedding-3-small"
	APIKey    string `toml:"api_key"`   // Provider API key (env reference preferred)
	BaseURL   string `toml:"base_url"`  // Override for OpenAI-compatible endpoints
	Dimension int    `toml:"dimension"` // Fixed embedding dimension (0 = provider default)
}

// JobsConfig contains job pipeline configuration
type JobsConfig struct {
	MaxConcurrent     int           `toml:"max_concurrent" validate:"min=1"` // Jobs running at once
	ProgressInterval  time.Duration `toml:"progress_interval"`               // Min interval between version-row progress writes
	ProgressBatchSize int           `toml:"progress_batch_size"`             // Pages between forced progress writes
	RefreshSchedule   string        `toml:"refresh_schedule"`                // Cron expression for stale version re-index ("" = disabled)
	RefreshAfter      time.Duration `toml:"refresh_after"`                   // Age at which a completed version is considered stale
	ResumeQueued      bool          `toml:"resume_queued"`                   // Re-enqueue versions still QUEUED after startup reconciliation
}

// LoggingConfig contains arbor logger configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for log lines
}

// DefaultConfig returns a config with defaults applied
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Path:          "./data/doctrina.db",
			CacheSizeMB:   64,
			BusyTimeoutMS: 30000,
			WALMode:       true,
		},
		Crawler: CrawlerConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxPages:       1000,
			MaxDepth:       3,
			MaxConcurrency: 3,
			RequestTimeout: 30 * time.Second,
			RequestDelay:   0,
			MaxRetries:     6,
			RetryBaseDelay: time.Second,
			ScrapeMode:     "auto",
			BrowserPool:    2,
		},
		Embeddings: EmbeddingsConfig{
			Model:     "",
			Dimension: 1536,
		},
		Jobs: JobsConfig{
			MaxConcurrent:     3,
			ProgressInterval:  time.Second,
			ProgressBatchSize: 10,
			RefreshSchedule:   "",
			RefreshAfter:      7 * 24 * time.Hour,
			ResumeQueued:      false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFile loads configuration from a TOML file, layering it over defaults
// and applying environment overrides last. A missing file is not an error; the
// defaults are returned so the binary runs without any configuration.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies DOCTRINA_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DOCTRINA_DB_PATH"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("DOCTRINA_EMBEDDING_MODEL"); v != "" {
		config.Embeddings.Model = v
	}
	if v := os.Getenv("DOCTRINA_EMBEDDING_API_KEY"); v != "" {
		config.Embeddings.APIKey = v
	}
	if v := os.Getenv("DOCTRINA_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// Validate checks structural constraints on the loaded configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
