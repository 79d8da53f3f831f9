package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_UNSET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", 0))
	assert.Equal(t, time.Second, getEnvDuration("TEST_UNSET", time.Second))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "admin", cfg.RBAC.AdminRole)
	assert.Equal(t, []string{"list", "delete"}, cfg.RBAC.AdminExtraGrants["session"])
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROLEGATE_PORT", "9000")
	t.Setenv("ROLEGATE_DB_DRIVER", "postgres")
	t.Setenv("ROLEGATE_DB_DSN", "postgres://localhost/rolegate")
	t.Setenv("ROLEGATE_ROLE_CACHE_TTL", "1m")
	t.Setenv("ROLEGATE_ADMIN_EXTRA_GRANTS", "user:list|get")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Minute, cfg.RBAC.RoleCacheTTL)
	assert.Equal(t, map[string][]string{"user": {"list", "get"}}, cfg.RBAC.AdminExtraGrants)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rolegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8181"
  read_timeout: 5s
observability:
  log_level: warn
rate_limit:
  enabled: true
  requests_per_window: 10
  window: 30s
`), 0o600))

	t.Setenv("ROLEGATE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Observability.LogLevel, "env wins over file")
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, int64(10), cfg.RateLimit.RequestsPerWindow)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestParseGrants(t *testing.T) {
	got := ParseGrants(" user:list|set-role , session:list, bogus, :x, settings: ")
	assert.Equal(t, map[string][]string{
		"user":    {"list", "set-role"},
		"session": {"list"},
	}, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "non-numeric port", mutate: func(c *Config) { c.Server.Port = "http" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = "70000" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "missing DSN", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: true},
		{name: "idle exceeds open", mutate: func(c *Config) { c.Database.MaxIdleConns = 100 }, wantErr: true},
		{name: "missing redis", mutate: func(c *Config) { c.Redis.URL = "" }, wantErr: true},
		{name: "blank admin role", mutate: func(c *Config) { c.RBAC.AdminRole = " " }, wantErr: true},
		{name: "admin role named after built-in", mutate: func(c *Config) { c.RBAC.AdminRole = "editor" }, wantErr: true},
		{name: "custom admin role", mutate: func(c *Config) { c.RBAC.AdminRole = "root" }},
		{name: "negative cache", mutate: func(c *Config) { c.RBAC.RoleCacheSize = -1 }, wantErr: true},
		{name: "retention without schedule", mutate: func(c *Config) { c.Audit.CleanupSchedule = "" }, wantErr: true},
		{
			name: "rate limit without window",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Window = 0
			},
			wantErr: true,
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rolegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: info\n"), 0o600))

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, logger, func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: debug\n"), 0o600))

	// A truncating write can surface an intermediate empty file first.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Observability.LogLevel == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for reload")
		}
	}
}
