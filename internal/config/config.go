package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// Config holds the configuration for the vaxboard server.
type Config struct {
	// Listen is the address the vaxboard server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// SessionKey is the key used to sign the session cookie.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// SecureCookies marks the session cookie as https-only.
	SecureCookies bool `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	// Auth holds the authentication configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
	// Database holds the paths of the local SQLite stores.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Dataset holds the remote dataset configuration.
	Dataset *DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	// Cache holds the read cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// AllowSignup enables self-service registration from the login page.
	AllowSignup bool `yaml:"allow_signup" mapstructure:"allow_signup"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// UsersPath is the path to the credential store database file.
	UsersPath string `yaml:"users_path" mapstructure:"users_path"`
	// DatasetPath is the path to the dataset cache database file.
	DatasetPath string `yaml:"dataset_path" mapstructure:"dataset_path"`
}

// DatasetConfig holds the configuration of the remote documents.
type DatasetConfig struct {
	// SourceURL is the URL of the CSV document mirrored into the local cache.
	SourceURL string `yaml:"source_url" mapstructure:"source_url"`
	// GeoJSONURL is the URL of the city boundary document. Optional.
	GeoJSONURL string `yaml:"geojson_url" mapstructure:"geojson_url"`
	// Timeout bounds every remote request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// RetrySchedule is the cron schedule on which an empty cache is refreshed again.
	RetrySchedule string `yaml:"retry_schedule" mapstructure:"retry_schedule"`
	// ExtraSources are further CSV documents that are only checked for availability.
	ExtraSources []SourceConfig `yaml:"extra_sources" mapstructure:"extra_sources"`
}

// SourceConfig names an auxiliary CSV document.
type SourceConfig struct {
	Label string `yaml:"label" mapstructure:"label"`
	URL   string `yaml:"url" mapstructure:"url"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is how long a cached snapshot stays valid.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("VAXBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.vaxboard")
		v.AddConfigPath("/etc/vaxboard")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the VAXBOARD_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3003")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 172800) // 48 hour
	v.SetDefault("secure_cookies", false)

	v.SetDefault("auth.allow_signup", true)

	v.SetDefault("database.users_path", "./data/users.db")
	v.SetDefault("database.dataset_path", "./data/vaccination_data.db")

	v.SetDefault("dataset.source_url", "")
	v.SetDefault("dataset.geojson_url", "")
	v.SetDefault("dataset.timeout", 30*time.Second)
	v.SetDefault("dataset.retry_schedule", "*/15 * * * *")

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 10*time.Minute)
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing vaxboard config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.Database == nil || c.Database.UsersPath == "" || c.Database.DatasetPath == "" {
		return fmt.Errorf("both database.users_path and database.dataset_path are required")
	}
	if c.Database.UsersPath == c.Database.DatasetPath {
		return fmt.Errorf("users and dataset must be stored in separate database files")
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}

	if c.Dataset == nil {
		return fmt.Errorf("missing dataset config")
	}
	if c.Dataset.SourceURL == "" {
		return fmt.Errorf("dataset source URL is required")
	}
	if err := validateHTTPURL(c.Dataset.SourceURL); err != nil {
		return fmt.Errorf("invalid dataset source URL: %w", err)
	}
	if c.Dataset.GeoJSONURL != "" {
		if err := validateHTTPURL(c.Dataset.GeoJSONURL); err != nil {
			return fmt.Errorf("invalid geojson URL: %w", err)
		}
	}
	if c.Dataset.Timeout <= 0 {
		return fmt.Errorf("dataset timeout must be greater than 0")
	}
	for i, src := range c.Dataset.ExtraSources {
		if err := validateHTTPURL(src.URL); err != nil {
			return fmt.Errorf("invalid URL of extra source %d: %w", i+1, err)
		}
	}
	// Basic validation for cron format (5 fields)
	if len(strings.Fields(c.Dataset.RetrySchedule)) != 5 {
		return fmt.Errorf("retry schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type != CacheTypeMemory && c.Cache.Type != CacheTypeRedis {
			return fmt.Errorf("unknown cache type %q", c.Cache.Type)
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
			TTL:  10 * time.Minute,
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = strings.TrimSpace(c.Listen)

	if c.Dataset != nil {
		c.Dataset.SourceURL = strings.TrimSpace(c.Dataset.SourceURL)
		c.Dataset.GeoJSONURL = strings.TrimSpace(c.Dataset.GeoJSONURL)
		for i := range c.Dataset.ExtraSources {
			src := &c.Dataset.ExtraSources[i]
			src.URL = strings.TrimSpace(src.URL)
			src.Label = strings.TrimSpace(src.Label)
			if src.Label == "" {
				src.Label = src.URL
			}
		}
	}

	if c.Cache != nil {
		c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	}
}
