package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Upload   UploadConfig   `yaml:"upload"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"20"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// UploadConfig bounds what the ingestor accepts.
type UploadConfig struct {
	// MaxUploadSize is the byte ceiling applied before any parsing work.
	MaxUploadSize int64 `yaml:"max_upload_size" envconfig:"MAX_UPLOAD_SIZE" default:"52428800"`
	// MaxPromptRows bounds how many data rows the prompt builder serializes.
	MaxPromptRows int `yaml:"max_prompt_rows" envconfig:"MAX_PROMPT_ROWS" default:"50"`
	// MaxFilesPerRequest caps how many documents one decode request carries.
	MaxFilesPerRequest int `yaml:"max_files_per_request" envconfig:"MAX_FILES_PER_REQUEST" default:"3"`
}

// AnalysisConfig configures the external text-generation client. The API key
// is never logged and never persisted.
type AnalysisConfig struct {
	APIKey                string        `yaml:"-" envconfig:"API_KEY"`
	Model                 string        `yaml:"model" envconfig:"ANALYSIS_MODEL" default:"gemini-1.5-flash"`
	RequestTimeoutSeconds int           `yaml:"request_timeout_seconds" envconfig:"REQUEST_TIMEOUT_SECONDS" default:"60"`
	MaxRetries            int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"3"`
	RetryBaseDelay        time.Duration `yaml:"retry_base_delay" envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	// ReportTTL is how long assembled reports stay downloadable.
	ReportTTL time.Duration `yaml:"report_ttl" envconfig:"REPORT_TTL" default:"30m"`
}

// RequestTimeout returns the per-attempt timeout for analysis calls.
func (a AnalysisConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Load loads configuration from environment variables and, when present, a
// config file. Environment values take precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// merge fills zero-valued env fields from the file config (env wins).
func merge(fileCfg, envCfg Config) Config {
	if envCfg.Server.Port == 0 {
		envCfg.Server.Port = fileCfg.Server.Port
	}
	if envCfg.Server.ReadTimeout == 0 {
		envCfg.Server.ReadTimeout = fileCfg.Server.ReadTimeout
	}
	if envCfg.Server.WriteTimeout == 0 {
		envCfg.Server.WriteTimeout = fileCfg.Server.WriteTimeout
	}
	if envCfg.Upload.MaxUploadSize == 0 {
		envCfg.Upload.MaxUploadSize = fileCfg.Upload.MaxUploadSize
	}
	if envCfg.Upload.MaxPromptRows == 0 {
		envCfg.Upload.MaxPromptRows = fileCfg.Upload.MaxPromptRows
	}
	if envCfg.Analysis.Model == "" {
		envCfg.Analysis.Model = fileCfg.Analysis.Model
	}
	if envCfg.Analysis.RequestTimeoutSeconds == 0 {
		envCfg.Analysis.RequestTimeoutSeconds = fileCfg.Analysis.RequestTimeoutSeconds
	}
	if envCfg.Analysis.MaxRetries == 0 {
		envCfg.Analysis.MaxRetries = fileCfg.Analysis.MaxRetries
	}

	return envCfg
}

// validate validates the configuration
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

	if c.Upload.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	if c.Upload.MaxPromptRows <= 0 {
		return fmt.Errorf("max prompt rows must be positive")
	}

	if c.Upload.MaxFilesPerRequest <= 0 {
		return fmt.Errorf("max files per request must be positive")
	}

	if c.Analysis.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("analysis request timeout must be positive")
	}

	if c.Analysis.MaxRetries < 0 {
		return fmt.Errorf("analysis max retries must not be negative")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// findConfigFile returns the path of the first config file found, if any
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}
