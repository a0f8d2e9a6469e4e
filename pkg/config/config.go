package config

import (
	"context"
	"time"
)

// Config represents the complete configuration for MinuteMate.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server   ServerConfig   `koanf:"server"   validate:"required"`
	Runtime  RuntimeConfig  `koanf:"runtime"  validate:"required"`
	LLM      LLMConfig      `koanf:"llm"      validate:"required"`
	Jira     JiraConfig     `koanf:"jira"`
	Mail     MailConfig     `koanf:"mail"`
	Redis    RedisConfig    `koanf:"redis"`
	Index    IndexConfig    `koanf:"index"    validate:"required"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Pipeline PipelineConfig `koanf:"pipeline" validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string          `koanf:"host"             validate:"required"        env:"SERVER_HOST"`
	Port            int             `koanf:"port"             validate:"min=1,max=65535" env:"SERVER_PORT"`
	MaxBodyBytes    int64           `koanf:"max_body_bytes"   validate:"min=1"           env:"SERVER_MAX_BODY_BYTES"`
	ReadTimeout     time.Duration   `koanf:"read_timeout"                                env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration   `koanf:"write_timeout"                               env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout"                            env:"SERVER_SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP on the API routes.
type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled" env:"SERVER_RATE_LIMIT_ENABLED"`
	Limit   int64         `koanf:"limit"   env:"SERVER_RATE_LIMIT"         validate:"min=0"`
	Period  time.Duration `koanf:"period"  env:"SERVER_RATE_PERIOD"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
	LogJSON     bool   `koanf:"log_json"                                                    env:"RUNTIME_LOG_JSON"`
}

// LLMConfig configures the extraction oracle.
type LLMConfig struct {
	Provider    string          `koanf:"provider"    validate:"oneof=openai google anthropic ollama mock" env:"LLM_PROVIDER"`
	Model       string          `koanf:"model"       validate:"required"                                   env:"LLM_MODEL"`
	APIKey      SensitiveString `koanf:"api_key"                                                           env:"LLM_API_KEY"     sensitive:"true"`
	BaseURL     string          `koanf:"base_url"    validate:"http_url"                                   env:"LLM_BASE_URL"`
	Temperature float64         `koanf:"temperature" validate:"min=0,max=2"                                env:"LLM_TEMPERATURE"`
	Timeout     time.Duration   `koanf:"timeout"     validate:"min=1"                                      env:"LLM_TIMEOUT"`
}

// JiraConfig contains issue tracker credentials and defaults.
type JiraConfig struct {
	BaseURL    string          `koanf:"base_url"    env:"JIRA_BASE_URL"    validate:"http_url"`
	Email      string          `koanf:"email"       env:"JIRA_EMAIL"`
	APIToken   SensitiveString `koanf:"api_token"   env:"JIRA_API_TOKEN"   sensitive:"true"`
	ProjectKey string          `koanf:"project_key" env:"JIRA_PROJECT_KEY"`
	IssueType  string          `koanf:"issue_type"  env:"JIRA_ISSUE_TYPE"`
	Timeout    time.Duration   `koanf:"timeout"     env:"JIRA_TIMEOUT"`
	UserCache  time.Duration   `koanf:"user_cache"  env:"JIRA_USER_CACHE_TTL"`
}

// MailConfig contains SMTP settings for task notifications.
type MailConfig struct {
	Host      string          `koanf:"host"       env:"EMAIL_HOST"`
	Port      int             `koanf:"port"       env:"EMAIL_PORT"       validate:"min=0,max=65535"`
	Username  string          `koanf:"username"   env:"EMAIL_USER"`
	Password  SensitiveString `koanf:"password"   env:"EMAIL_PASS"       sensitive:"true"`
	From      string          `koanf:"from"       env:"FROM_EMAIL"`
	TLSPolicy string          `koanf:"tls_policy" env:"EMAIL_TLS_POLICY" validate:"oneof=opportunistic mandatory none"`
	Timeout   time.Duration   `koanf:"timeout"    env:"EMAIL_TIMEOUT"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	URL         string          `koanf:"url"          env:"REDIS_URL"`
	Host        string          `koanf:"host"         env:"REDIS_HOST"`
	Port        string          `koanf:"port"         env:"REDIS_PORT"`
	Password    SensitiveString `koanf:"password"     env:"REDIS_PASSWORD" sensitive:"true"`
	DB          int             `koanf:"db"           env:"REDIS_DB"`
	PoolSize    int             `koanf:"pool_size"    env:"REDIS_POOL_SIZE"`
	PingTimeout time.Duration   `koanf:"ping_timeout" env:"REDIS_PING_TIMEOUT"`
}

// IndexConfig configures the fingerprint index used for idempotent ticket creation.
type IndexConfig struct {
	Driver    string        `koanf:"driver"     validate:"oneof=redis memory" env:"INDEX_DRIVER"`
	Prefix    string        `koanf:"prefix"     validate:"required"           env:"INDEX_PREFIX"`
	ClaimTTL  time.Duration `koanf:"claim_ttl"  validate:"min=1"              env:"INDEX_CLAIM_TTL"`
	ClaimWait time.Duration `koanf:"claim_wait" validate:"min=1"              env:"INDEX_CLAIM_WAIT"`
	Retention time.Duration `koanf:"retention"                                env:"INDEX_RETENTION"`
}

// DatabaseConfig contains the SQLite store location.
type DatabaseConfig struct {
	Path        string        `koanf:"path"         validate:"required" env:"DB_PATH"`
	BusyTimeout time.Duration `koanf:"busy_timeout"                     env:"DB_BUSY_TIMEOUT"`
}

// PipelineConfig tunes one transcript processing run.
type PipelineConfig struct {
	MaxConcurrency     int           `koanf:"max_concurrency"     validate:"min=1" env:"PIPELINE_MAX_CONCURRENCY"`
	ExtractionAttempts int           `koanf:"extraction_attempts" validate:"min=1" env:"PIPELINE_EXTRACTION_ATTEMPTS"`
	BackoffBase        time.Duration `koanf:"backoff_base"                         env:"PIPELINE_BACKOFF_BASE"`
	BackoffMax         time.Duration `koanf:"backoff_max"                          env:"PIPELINE_BACKOFF_MAX"`
	RouteTimeout       time.Duration `koanf:"route_timeout"       validate:"min=1" env:"PIPELINE_ROUTE_TIMEOUT"`
	NotifyTimeout      time.Duration `koanf:"notify_timeout"      validate:"min=1" env:"PIPELINE_NOTIFY_TIMEOUT"`
	ManagerDigest      bool          `koanf:"manager_digest"                       env:"PIPELINE_MANAGER_DIGEST"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type for a specific configuration key.
	GetSource(key string) SourceType
}

// Source represents a configuration source.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains information about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Default returns the built-in configuration used before any source is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			MaxBodyBytes:    2 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				Limit:   60,
				Period:  time.Minute,
			},
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		LLM: LLMConfig{
			Provider:    "google",
			Model:       "gemini-1.5-flash",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Jira: JiraConfig{
			IssueType: "Task",
			Timeout:   15 * time.Second,
			UserCache: 30 * time.Minute,
		},
		Mail: MailConfig{
			Port:      587,
			TLSPolicy: "opportunistic",
			Timeout:   15 * time.Second,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        "6379",
			PoolSize:    10,
			PingTimeout: 5 * time.Second,
		},
		Index: IndexConfig{
			Driver:    "redis",
			Prefix:    "minutemate:fp",
			ClaimTTL:  2 * time.Minute,
			ClaimWait: 30 * time.Second,
			Retention: 30 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:        "minutemate.db",
			BusyTimeout: 5 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxConcurrency:     4,
			ExtractionAttempts: 3,
			BackoffBase:        500 * time.Millisecond,
			BackoffMax:         10 * time.Second,
			RouteTimeout:       30 * time.Second,
			NotifyTimeout:      20 * time.Second,
			ManagerDigest:      true,
		},
	}
}
