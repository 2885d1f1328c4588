package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
session_key: secret
dataset:
  source_url: " https://example.com/data.csv "
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3003", cfg.Listen)
	assert.Equal(t, 172800, cfg.SessionMaxAge)
	assert.True(t, cfg.Auth.AllowSignup)
	assert.Equal(t, "./data/users.db", cfg.Database.UsersPath)
	assert.Equal(t, "./data/vaccination_data.db", cfg.Database.DatasetPath)
	assert.Equal(t, "https://example.com/data.csv", cfg.Dataset.SourceURL)
	assert.Equal(t, 30*time.Second, cfg.Dataset.Timeout)
	assert.Equal(t, "*/15 * * * *", cfg.Dataset.RetrySchedule)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
listen: 127.0.0.1:9000
session_key: secret
auth:
  allow_signup: false
dataset:
  source_url: https://example.com/data.csv
  geojson_url: https://example.com/cities.geojson
  timeout: 5s
  extra_sources:
    - label: Drive File 2
      url: https://example.com/second.csv
    - url: " https://example.com/third.csv "
cache:
  type: redis
  redis_url: localhost:6379
  ttl: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.False(t, cfg.Auth.AllowSignup)
	assert.Equal(t, 5*time.Second, cfg.Dataset.Timeout)
	assert.Equal(t, "https://example.com/cities.geojson", cfg.Dataset.GeoJSONURL)
	assert.Equal(t, []SourceConfig{
		{Label: "Drive File 2", URL: "https://example.com/second.csv"},
		{Label: "https://example.com/third.csv", URL: "https://example.com/third.csv"},
	}, cfg.Dataset.ExtraSources)
	assert.Equal(t, CacheTypeRedis, cfg.Cache.Type)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
dataset:
  source_url: https://example.com/data.csv
`)
	t.Setenv("VAXBOARD_SESSION_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionKey)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SessionKey: "secret",
			Database: &DatabaseConfig{
				UsersPath:   "users.db",
				DatasetPath: "data.db",
			},
			Dataset: &DatasetConfig{
				SourceURL:     "https://example.com/data.csv",
				Timeout:       time.Second,
				RetrySchedule: "*/15 * * * *",
			},
			Cache: &CacheConfig{Type: CacheTypeMemory},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing session key",
			mutate:  func(c *Config) { c.SessionKey = "" },
			wantErr: "session key is required",
		},
		{
			name:    "shared database file",
			mutate:  func(c *Config) { c.Database.DatasetPath = c.Database.UsersPath },
			wantErr: "separate database files",
		},
		{
			name:    "missing source url",
			mutate:  func(c *Config) { c.Dataset.SourceURL = "" },
			wantErr: "dataset source URL is required",
		},
		{
			name:    "non http source url",
			mutate:  func(c *Config) { c.Dataset.SourceURL = "ftp://example.com/data.csv" },
			wantErr: "invalid dataset source URL",
		},
		{
			name:    "bad geojson url",
			mutate:  func(c *Config) { c.Dataset.GeoJSONURL = "cities.geojson" },
			wantErr: "invalid geojson URL",
		},
		{
			name: "bad extra source url",
			mutate: func(c *Config) {
				c.Dataset.ExtraSources = []SourceConfig{{Label: "Drive File 2", URL: "second.csv"}}
			},
			wantErr: "invalid URL of extra source 1",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Dataset.Timeout = 0 },
			wantErr: "timeout must be greater than 0",
		},
		{
			name:    "bad cron",
			mutate:  func(c *Config) { c.Dataset.RetrySchedule = "every minute" },
			wantErr: "retry schedule",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Cache = &CacheConfig{Type: CacheTypeRedis} },
			wantErr: "Redis URL is required",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *Config) { c.Cache = &CacheConfig{Type: "memcached"} },
			wantErr: "unknown cache type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := validateConfig(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig_DefaultsCache(t *testing.T) {
	c := &Config{
		SessionKey: "secret",
		Database:   &DatabaseConfig{UsersPath: "a.db", DatasetPath: "b.db"},
		Dataset: &DatasetConfig{
			SourceURL:     "https://example.com/data.csv",
			Timeout:       time.Second,
			RetrySchedule: "0 * * * *",
		},
	}
	require.NoError(t, validateConfig(c))
	require.NotNil(t, c.Cache)
	assert.Equal(t, CacheTypeMemory, c.Cache.Type)
	require.NotNil(t, c.Auth)
}
