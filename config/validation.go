package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/samir777-eng/ebad-academy-sub001/adapters/sqlx"
)

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func oneOf(field, value string, allowed ...string) string {
	if slices.Contains(allowed, value) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", "))
}

func appendIf(errs []string, msg string) []string {
	if msg != "" {
		errs = append(errs, msg)
	}
	return errs
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string
	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}
	timeouts := map[string]int64{
		"read_timeout":        int64(s.ReadTimeout),
		"write_timeout":       int64(s.WriteTimeout),
		"idle_timeout":        int64(s.IdleTimeout),
		"read_header_timeout": int64(s.ReadHeaderTimeout),
		"shutdown_timeout":    int64(s.ShutdownTimeout),
	}
	for _, name := range []string{"read_timeout", "write_timeout", "idle_timeout", "read_header_timeout", "shutdown_timeout"} {
		if timeouts[name] <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string
	errs = appendIf(errs, oneOf("adapter", s.Adapter, "memory", "sql"))
	if s.Adapter == "sql" {
		errs = appendIf(errs, oneOf("sql.driver", string(s.SQL.Driver),
			string(sqlx.DriverPostgres), string(sqlx.DriverMySQL), string(sqlx.DriverSQLite)))
		if s.SQL.DSN == "" {
			errs = append(errs, "sql.dsn cannot be empty")
		}
		if s.SQL.MaxOpenConns < 0 || s.SQL.MaxIdleConns < 0 {
			errs = append(errs, "sql pool sizes cannot be negative")
		}
	}
	return joinErrs(errs)
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []string
	if c.Redis.Addr == "" {
		errs = append(errs, "redis.addr cannot be empty when the cache is enabled")
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, "redis.ttl cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates event bus configuration
func (e *EventsConfig) Validate() error {
	var errs []string
	errs = appendIf(errs, oneOf("mode", e.Mode, "sync", "async"))
	if e.Mode == "async" {
		if e.QueueSize <= 0 {
			errs = append(errs, "queue_size must be > 0 in async mode")
		}
		if e.Workers <= 0 {
			errs = append(errs, "workers must be > 0 in async mode")
		}
	}
	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string
	errs = appendIf(errs, oneOf("level", l.Level, "debug", "info", "warn", "error"))
	errs = appendIf(errs, oneOf("format", l.Format, "json", "text"))
	errs = appendIf(errs, oneOf("output", l.Output, "stdout", "stderr"))
	return joinErrs(errs)
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	var errs []string
	if m.Address == "" {
		errs = append(errs, "address cannot be empty when metrics are enabled")
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, "path must start with / when metrics are enabled")
	}
	return joinErrs(errs)
}

// Validate validates tracing configuration
func (t *TracingConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	errs = appendIf(errs, oneOf("exporter", t.Exporter, "stdout", "otlp"))
	if t.Exporter == "otlp" && t.Endpoint == "" {
		errs = append(errs, "endpoint cannot be empty for the otlp exporter")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, "sample_ratio must be within [0, 1]")
	}
	if t.ServiceName == "" {
		errs = append(errs, "service_name cannot be empty")
	}
	return joinErrs(errs)
}

// Validate validates webhook configuration
func (n *NotificationsConfig) Validate() error {
	var errs []string
	for i, raw := range n.WebhookURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhook_urls[%d] must be an absolute http(s) URL", i))
		}
	}
	if len(n.WebhookURLs) > 0 && n.Timeout <= 0 {
		errs = append(errs, "timeout must be positive when webhooks are configured")
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}
