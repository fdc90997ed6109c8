// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Document store backends.
const (
	DocStoreMongo  = "mongo"
	DocStoreMemory = "memory"
)

// Config holds the service settings.
type Config struct {
	Port              int           `mapstructure:"port"`
	DatabasePath      string        `mapstructure:"database_path"`
	DocStore          string        `mapstructure:"docstore"`
	MongoURI          string        `mapstructure:"mongo_uri"`
	MongoDatabase     string        `mapstructure:"mongo_database"`
	BlobBucketURL     string        `mapstructure:"blob_bucket_url"`
	BlobPublicBaseURL string        `mapstructure:"blob_public_base_url"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	// RequireMembership limits replying to and reading a conversation to
	// its participants.
	RequireMembership bool          `mapstructure:"messages_require_membership"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileAfter    time.Duration `mapstructure:"reconcile_after"`
	LogFile           string        `mapstructure:"log_file"`
	// RedisURL enables per-client throttling of registration and login.
	RedisURL          string `mapstructure:"redis_url"`
	AuthRatePerMinute int    `mapstructure:"auth_rate_per_minute"`
}

// Load reads envFile (or ./.env if envFile is empty and the file exists)
// into the process environment, then builds the config from the
// environment and defaults. Variables already set take precedence over the
// file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required settings and ranges.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH is required")
	}
	switch c.DocStore {
	case DocStoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when DOCSTORE=mongo")
		}
	case DocStoreMemory:
	default:
		return fmt.Errorf("unknown DOCSTORE %q (want %s or %s)", c.DocStore, DocStoreMongo, DocStoreMemory)
	}
	if c.BlobBucketURL == "" {
		return errors.New("BLOB_BUCKET_URL is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.ReconcileInterval <= 0 || c.ReconcileAfter <= 0 {
		return errors.New("RECONCILE_INTERVAL and RECONCILE_AFTER must be positive")
	}
	if c.RedisURL != "" && c.AuthRatePerMinute <= 0 {
		return errors.New("AUTH_RATE_PER_MINUTE must be positive when REDIS_URL is set")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database_path", "auto-host.sqlite3")
	v.SetDefault("docstore", DocStoreMongo)
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "auto_host")
	v.SetDefault("blob_bucket_url", "")
	v.SetDefault("blob_public_base_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", time.Hour)
	v.SetDefault("messages_require_membership", false)
	v.SetDefault("reconcile_interval", time.Minute)
	v.SetDefault("reconcile_after", 30*time.Second)
	v.SetDefault("log_file", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("auth_rate_per_minute", 10)
}
