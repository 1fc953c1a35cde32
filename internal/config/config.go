// Package config loads application configuration from environment
// variables layered over an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
}

// SecurityConfig contains request protection configuration.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ArchiveFile string `yaml:"archive_file" envconfig:"ARCHIVE_FILE"`
	ModelsDir   string `yaml:"models_dir" envconfig:"MODELS_DIR"`
	ReportsDir  string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	TrackingDB  string `yaml:"tracking_db" envconfig:"TRACKING_DB"`
}

// PipelineConfig contains the default training pipeline settings.
type PipelineConfig struct {
	Target          string        `yaml:"target" envconfig:"TARGET"`
	ArchiveMember   string        `yaml:"archive_member" envconfig:"ARCHIVE_MEMBER"`
	TestRatio       float64       `yaml:"test_ratio" envconfig:"TEST_RATIO"`
	Seed            int64         `yaml:"seed" envconfig:"SEED"`
	Impute          string        `yaml:"impute" envconfig:"IMPUTE"`
	OutlierMethod   string        `yaml:"outlier_method" envconfig:"OUTLIER_METHOD"`
	OutlierStrategy string        `yaml:"outlier_strategy" envconfig:"OUTLIER_STRATEGY"`
	LogTarget       bool          `yaml:"log_target" envconfig:"LOG_TARGET"`
	Ridge           float64       `yaml:"ridge" envconfig:"RIDGE"`
	StepTimeout     time.Duration `yaml:"step_timeout" envconfig:"STEP_TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
}

// WebSocketConfig contains WebSocket configuration.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 30 * time.Minute,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:     "data",
			ArchiveFile: "data/archive.zip",
			ModelsDir:   "models",
			ReportsDir:  "reports",
			TrackingDB:  "data/tracking.db",
		},
		Pipeline: PipelineConfig{
			Target:          "SalePrice",
			TestRatio:       0.2,
			Seed:            42,
			Impute:          "median",
			OutlierMethod:   "zscore",
			OutlierStrategy: "remove",
			LogTarget:       true,
			StepTimeout:     5 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}

// Load builds the configuration by layering the YAML file named by
// PRICEPIPE_CONFIG (default config.yaml) over the built-in defaults,
// then applying PRICEPIPE_* environment variables on top.
func Load() (*Config, error) {
	cfg := Default()

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("PRICEPIPE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}

	return &cfg, nil
}

func configFilePath() string {
	if path := os.Getenv("PRICEPIPE_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// validate checks the configuration and normalizes fields with a
// single accepted value.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Pipeline.TestRatio <= 0 || c.Pipeline.TestRatio >= 1 {
		return fmt.Errorf("test ratio must be in (0, 1), got %g", c.Pipeline.TestRatio)
	}
	if c.Pipeline.Target == "" {
		return fmt.Errorf("pipeline target column must be set")
	}
	if c.Pipeline.Ridge < 0 {
		return fmt.Errorf("ridge penalty must not be negative, got %g", c.Pipeline.Ridge)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.Pipeline.MaxRetries)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "stdout" && c.Logging.Output != "file" && c.Logging.Output != "both" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.WebSocket.PingPeriod <= 0 || c.WebSocket.PongWait <= 0 {
		return fmt.Errorf("websocket ping period and pong wait must be positive")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket ping period %s must be shorter than pong wait %s",
			c.WebSocket.PingPeriod, c.WebSocket.PongWait)
	}

	return nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.ModelsDir,
		c.Paths.ReportsDir,
		filepath.Dir(c.Paths.TrackingDB),
		filepath.Dir(c.Logging.FilePath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
