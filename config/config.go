package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/samir777-eng/ebad-academy-sub001/adapters/redis"
	"github.com/samir777-eng/ebad-academy-sub001/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	Environment Environment `json:"environment" yaml:"environment" env:"PROGRESSION_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"PROGRESSION_PROFILE"`

	Server        ServerConfig        `json:"server" yaml:"server"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Cache         CacheConfig         `json:"cache" yaml:"cache"`
	Events        EventsConfig        `json:"events" yaml:"events"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Metrics       MetricsConfig       `json:"metrics" yaml:"metrics"`
	Tracing       TracingConfig       `json:"tracing" yaml:"tracing"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
	Curriculum    CurriculumConfig    `json:"curriculum" yaml:"curriculum"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"PROGRESSION_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"PROGRESSION_SERVER_PATH_PREFIX"`
	CORSOrigins       []string      `json:"cors_origins" yaml:"cors_origins" env:"PROGRESSION_SERVER_CORS_ORIGINS"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"PROGRESSION_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"PROGRESSION_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"PROGRESSION_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"PROGRESSION_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"PROGRESSION_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects the persistence adapter.
type StorageConfig struct {
	Adapter string      `json:"adapter" yaml:"adapter" env:"PROGRESSION_STORAGE_ADAPTER"`
	SQL     sqlx.Config `json:"sql" yaml:"sql"`
}

// CacheConfig enables the Redis curriculum cache in front of the store.
type CacheConfig struct {
	Enabled bool         `json:"enabled" yaml:"enabled" env:"PROGRESSION_CACHE_ENABLED"`
	Redis   redis.Config `json:"redis" yaml:"redis"`
}

// EventsConfig tunes the engine event bus.
type EventsConfig struct {
	Mode      string `json:"mode" yaml:"mode" env:"PROGRESSION_EVENTS_MODE"`
	QueueSize int    `json:"queue_size" yaml:"queue_size" env:"PROGRESSION_EVENTS_QUEUE_SIZE"`
	Workers   int    `json:"workers" yaml:"workers" env:"PROGRESSION_EVENTS_WORKERS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"PROGRESSION_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"PROGRESSION_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"PROGRESSION_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"PROGRESSION_LOG_ATTRIBUTES"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"PROGRESSION_METRICS_ENABLED"`
	Address   string `json:"address" yaml:"address" env:"PROGRESSION_METRICS_ADDR"`
	Path      string `json:"path" yaml:"path" env:"PROGRESSION_METRICS_PATH"`
	Namespace string `json:"namespace" yaml:"namespace" env:"PROGRESSION_METRICS_NAMESPACE"`
}

// TracingConfig selects the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" env:"PROGRESSION_TRACING_ENABLED"`
	Exporter    string  `json:"exporter" yaml:"exporter" env:"PROGRESSION_TRACING_EXPORTER"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" env:"PROGRESSION_TRACING_ENDPOINT"`
	ServiceName string  `json:"service_name" yaml:"service_name" env:"PROGRESSION_TRACING_SERVICE_NAME"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" env:"PROGRESSION_TRACING_SAMPLE_RATIO"`
}

// NotificationsConfig lists webhook endpoints for unlock and badge events.
type NotificationsConfig struct {
	WebhookURLs []string      `json:"webhook_urls" yaml:"webhook_urls" env:"PROGRESSION_WEBHOOK_URLS"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" env:"PROGRESSION_WEBHOOK_TIMEOUT"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"PROGRESSION_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"PROGRESSION_SECURITY_API_KEYS"`
	AllowedOrigins  []string        `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" env:"PROGRESSION_SECURITY_WS_ORIGINS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" env:"PROGRESSION_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size" env:"PROGRESSION_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"PROGRESSION_SECURITY_RATE_LIMIT_CLEANUP"`
}

// CurriculumConfig points at a seed file applied at startup.
type CurriculumConfig struct {
	Path string `json:"path" yaml:"path" env:"PROGRESSION_CURRICULUM_PATH"`
}

// Load reads an optional .env file, applies environment variables over the
// defaults and validates the result.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv exports variables from path without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}
	cleanPath := filepath.Clean(path)
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.New("config file must have .json, .yaml or .yml extension")
	}
	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Environment
// variables override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadProfile loads {dir}/{profile}.yaml, falling back to .yml and .json,
// after reading {dir}/{profile}.env when present. An empty dir means "configs".
func LoadProfile(dir, profile string) (*Config, error) {
	if profile == "" {
		return nil, errors.New("profile cannot be empty")
	}
	if strings.ContainsAny(profile, `/\`) || strings.Contains(profile, "..") {
		return nil, fmt.Errorf("invalid profile name %q", profile)
	}
	if dir == "" {
		dir = "configs"
	}
	if err := loadDotEnv(filepath.Join(dir, profile+".env")); err != nil {
		return nil, err
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, profile+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		if cfg.Profile == "" || cfg.Profile == "default" {
			cfg.Profile = profile
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("no config file for profile %q in %s", profile, dir)
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigins:       []string{"*"},
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			SQL:     sqlx.DefaultConfig(sqlx.DriverSQLite),
		},
		Cache: CacheConfig{
			Enabled: false,
			Redis:   redis.DefaultConfig(),
		},
		Events: EventsConfig{
			Mode:      "async",
			QueueSize: 1024,
			Workers:   4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   ":9090",
			Path:      "/metrics",
			Namespace: "progression",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "progression-server",
			SampleRatio: 1,
		},
		Notifications: NotificationsConfig{
			WebhookURLs: []string{},
			Timeout:     5 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 120,
				BurstSize:         20,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}
	sections := []struct {
		name string
		err  error
	}{
		{"server", c.Server.Validate()},
		{"storage", c.Storage.Validate()},
		{"cache", c.Cache.Validate()},
		{"events", c.Events.Validate()},
		{"logging", c.Logging.Validate()},
		{"metrics", c.Metrics.Validate()},
		{"tracing", c.Tracing.Validate()},
		{"notifications", c.Notifications.Validate()},
		{"security", c.Security.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Cache.Redis.Password != "" {
		cfg.Cache.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
