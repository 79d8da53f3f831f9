package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	RBAC          RBACConfig          `yaml:"rbac"`
	Audit         AuditConfig         `yaml:"audit"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds role store connection settings
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	Timeout         time.Duration `yaml:"timeout"`
}

// RedisConfig holds session store settings
type RedisConfig struct {
	URL           string `yaml:"url"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	SessionPrefix string `yaml:"session_prefix"`
}

// RBACConfig holds authorization settings
type RBACConfig struct {
	AdminRole     string        `yaml:"admin_role"`
	RoleCacheSize int           `yaml:"role_cache_size"`
	RoleCacheTTL  time.Duration `yaml:"role_cache_ttl"`
	// AdminExtraGrants are granted to the administrator on top of the full catalog.
	AdminExtraGrants map[string][]string `yaml:"admin_extra_grants"`
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Retention       time.Duration `yaml:"retention"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// RateLimitConfig holds rate limiting settings for the admin API
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int64         `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled    bool   `yaml:"otel_enabled"`
	OTelEndpoint   string `yaml:"otel_endpoint"`
	OTelInsecure   bool   `yaml:"otel_insecure"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "file:rolegate.db?_foreign_keys=on",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
			Timeout:         5 * time.Second,
		},
		Redis: RedisConfig{
			URL:           "redis://localhost:6379/0",
			SessionPrefix: "rolegate:session:",
		},
		RBAC: RBACConfig{
			AdminRole:     "admin",
			RoleCacheSize: 256,
			RoleCacheTTL:  30 * time.Second,
			AdminExtraGrants: map[string][]string{
				"user":    {"list", "set-role", "set-password", "get"},
				"session": {"list", "delete"},
			},
		},
		Audit: AuditConfig{
			Enabled:         true,
			Retention:       90 * 24 * time.Hour,
			CleanupSchedule: "@daily",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerWindow: 120,
			Window:            time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			OTelEnabled:    false,
			OTelEndpoint:   "localhost:4317",
			OTelInsecure:   true,
			ServiceName:    "rolegate",
			ServiceVersion: "dev",
		},
	}
}

// LoadConfig loads configuration from the file named by ROLEGATE_CONFIG_FILE
// (if any) and then from environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("ROLEGATE_CONFIG_FILE"))
}

// Load builds configuration from defaults, an optional YAML file, and the
// environment, in increasing order of precedence
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Server
	s.Host = getEnv("ROLEGATE_HOST", s.Host)
	s.Port = getEnv("ROLEGATE_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("ROLEGATE_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("ROLEGATE_WRITE_TIMEOUT", s.WriteTimeout)
	s.ShutdownTimeout = getEnvDuration("ROLEGATE_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	d := &cfg.Database
	d.Driver = getEnv("ROLEGATE_DB_DRIVER", d.Driver)
	d.DSN = getEnv("ROLEGATE_DB_DSN", d.DSN)
	d.MaxOpenConns = getEnvInt("ROLEGATE_DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("ROLEGATE_DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("ROLEGATE_DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnMaxIdleTime = getEnvDuration("ROLEGATE_DB_CONN_MAX_IDLE_TIME", d.ConnMaxIdleTime)
	d.Timeout = getEnvDuration("ROLEGATE_DB_TIMEOUT", d.Timeout)

	r := &cfg.Redis
	r.URL = getEnv("ROLEGATE_REDIS_URL", r.URL)
	r.Password = getEnv("ROLEGATE_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("ROLEGATE_REDIS_DB", r.DB)
	r.SessionPrefix = getEnv("ROLEGATE_SESSION_PREFIX", r.SessionPrefix)

	rb := &cfg.RBAC
	rb.AdminRole = getEnv("ROLEGATE_ADMIN_ROLE", rb.AdminRole)
	rb.RoleCacheSize = getEnvInt("ROLEGATE_ROLE_CACHE_SIZE", rb.RoleCacheSize)
	rb.RoleCacheTTL = getEnvDuration("ROLEGATE_ROLE_CACHE_TTL", rb.RoleCacheTTL)
	if grants := os.Getenv("ROLEGATE_ADMIN_EXTRA_GRANTS"); grants != "" {
		rb.AdminExtraGrants = ParseGrants(grants)
	}

	a := &cfg.Audit
	a.Enabled = getEnvBool("ROLEGATE_AUDIT_ENABLED", a.Enabled)
	a.Retention = getEnvDuration("ROLEGATE_AUDIT_RETENTION", a.Retention)
	a.CleanupSchedule = getEnv("ROLEGATE_AUDIT_CLEANUP_SCHEDULE", a.CleanupSchedule)

	rl := &cfg.RateLimit
	rl.Enabled = getEnvBool("ROLEGATE_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerWindow = getEnvInt64("ROLEGATE_RATE_LIMIT_REQUESTS", rl.RequestsPerWindow)
	rl.Window = getEnvDuration("ROLEGATE_RATE_LIMIT_WINDOW", rl.Window)

	o := &cfg.Observability
	o.LogLevel = getEnv("ROLEGATE_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("ROLEGATE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("ROLEGATE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("ROLEGATE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelInsecure = getEnvBool("ROLEGATE_OTEL_INSECURE", o.OTelInsecure)
	o.ServiceName = getEnv("ROLEGATE_OTEL_SERVICE_NAME", o.ServiceName)
	o.ServiceVersion = getEnv("ROLEGATE_OTEL_SERVICE_VERSION", o.ServiceVersion)
}

// ParseGrants parses "resource:action|action,resource:action" into a grant map.
// Malformed entries are skipped.
func ParseGrants(s string) map[string][]string {
	grants := make(map[string][]string)
	for _, entry := range strings.Split(s, ",") {
		resource, actions, ok := strings.Cut(strings.TrimSpace(entry), ":")
		resource = strings.TrimSpace(resource)
		if !ok || resource == "" {
			continue
		}
		for _, action := range strings.Split(actions, "|") {
			if action = strings.TrimSpace(action); action != "" {
				grants[resource] = append(grants[resource], action)
			}
		}
	}
	return grants
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		return fmt.Errorf("max idle connections (%d) exceeds max open connections (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if strings.TrimSpace(c.RBAC.AdminRole) == "" {
		return fmt.Errorf("admin role name is required")
	}
	switch c.RBAC.AdminRole {
	case "user", "editor", "moderator":
		return fmt.Errorf("admin role name %q is already a built-in role", c.RBAC.AdminRole)
	}
	if c.RBAC.RoleCacheSize < 0 {
		return fmt.Errorf("role cache size must not be negative")
	}

	if c.Audit.Enabled && c.Audit.Retention > 0 && c.Audit.CleanupSchedule == "" {
		return fmt.Errorf("audit cleanup schedule is required when retention is set")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
