package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the literature review system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains the LLM provider configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // gemini, openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Provider) == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	if l.Retry.Attempts < 1 {
		return fmt.Errorf("llm.retry.attempts must be >= 1")
	}
	return nil
}

// RetryConfig controls retries of transient provider failures
type RetryConfig struct {
	Attempts          int           `mapstructure:"attempts"`
	ExpBase           float64       `mapstructure:"exp_base"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	RetryableStatuses []int         `mapstructure:"retryable_statuses"`
}

// SearchConfig contains paper search settings
type SearchConfig struct {
	MaxResults   int           `mapstructure:"max_results"`
	ArxivBaseURL string        `mapstructure:"arxiv_base_url"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	if s.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return nil
}

// PipelineConfig contains orchestration settings for a review run
type PipelineConfig struct {
	MaxIterations       int           `mapstructure:"max_iterations"`
	AcceptanceThreshold int           `mapstructure:"acceptance_threshold"`
	SelectCount         int           `mapstructure:"select_count"`
	StageAttempts       int           `mapstructure:"stage_attempts"`
	StageTimeout        time.Duration `mapstructure:"stage_timeout"`
	MinReportChars      int           `mapstructure:"min_report_chars"`
	MaxConcurrentRuns   int           `mapstructure:"max_concurrent_runs"`
}

func (p PipelineConfig) Validate() error {
	if p.MaxIterations < 1 {
		return fmt.Errorf("pipeline.max_iterations must be >= 1")
	}
	if p.AcceptanceThreshold < 1 || p.AcceptanceThreshold > 10 {
		return fmt.Errorf("pipeline.acceptance_threshold must be within 1..10")
	}
	if p.SelectCount < 1 {
		return fmt.Errorf("pipeline.select_count must be >= 1")
	}
	if p.MaxConcurrentRuns < 1 {
		return fmt.Errorf("pipeline.max_concurrent_runs must be >= 1")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// StorageConfig contains persistence settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings for the run archive
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required when redis is enabled")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when redis is enabled")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 30*time.Second)
	viper.SetDefault("general.max_processing_time", 10*time.Minute)

	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.model", "gemini-2.5-flash-lite")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 8192)
	viper.SetDefault("llm.timeout", 30*time.Second)
	viper.SetDefault("llm.retry.attempts", 5)
	viper.SetDefault("llm.retry.exp_base", 7.0)
	viper.SetDefault("llm.retry.initial_delay", time.Second)
	viper.SetDefault("llm.retry.retryable_statuses", []int{429, 500, 503, 504})

	viper.SetDefault("search.max_results", 20)
	viper.SetDefault("search.arxiv_base_url", "http://export.arxiv.org/api/query")
	viper.SetDefault("search.timeout", 20*time.Second)

	viper.SetDefault("pipeline.max_iterations", 2)
	viper.SetDefault("pipeline.acceptance_threshold", 8)
	viper.SetDefault("pipeline.select_count", 5)
	viper.SetDefault("pipeline.stage_attempts", 2)
	viper.SetDefault("pipeline.stage_timeout", 2*time.Minute)
	viper.SetDefault("pipeline.min_report_chars", 50)
	viper.SetDefault("pipeline.max_concurrent_runs", 4)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.metrics_port", 9090)
	viper.SetDefault("telemetry.cost_tracking", true)

	viper.SetDefault("storage.redis.enabled", false)
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
}

// LoadConfig loads config from file and LITREVIEW_* environment overrides
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("LITREVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := config.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := config.Search.Validate(); err != nil {
		return nil, err
	}
	if err := config.Pipeline.Validate(); err != nil {
		return nil, err
	}
	if err := config.Telemetry.Validate(); err != nil {
		return nil, err
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
