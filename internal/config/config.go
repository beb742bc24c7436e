// Package config holds the runtime configuration of the tollgate binary.
package config

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// Config is the fully resolved configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Model  ModelConfig  `mapstructure:"model"`
	Tools  ToolsConfig  `mapstructure:"tools"`
	Engine EngineConfig `mapstructure:"engine"`
	Lock   LockConfig   `mapstructure:"lock"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// StoreConfig selects and configures the checkpoint store.
type StoreConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, file, redis, sqlite, postgres
	Path          string        `mapstructure:"path"`
	DSN           string        `mapstructure:"dsn"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	Redact        []string      `mapstructure:"redact"`
}

type ModelConfig struct {
	Provider string `mapstructure:"provider"` // rules or openai
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Name     string `mapstructure:"name"`
}

type ToolsConfig struct {
	File string `mapstructure:"file"`
}

type EngineConfig struct {
	RejectAll bool `mapstructure:"reject_all"`
	MaxSteps  int  `mapstructure:"max_steps"`
}

type LockConfig struct {
	Distributed bool          `mapstructure:"distributed"`
	TTL         time.Duration `mapstructure:"ttl"`
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	ProviderRules  = "rules"
	ProviderOpenAI = "openai"
)

// NewDefaultConfig returns the configuration used when nothing is set.
func NewDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			Path:      ".tollgate/sessions",
			RedisAddr: "localhost:6379",
		},
		Model: ModelConfig{
			Provider: ProviderRules,
			BaseURL:  "https://api.openai.com/v1",
			Name:     "gpt-4o-mini",
		},
		Tools: ToolsConfig{
			File: "tools.yaml",
		},
		Engine: EngineConfig{
			MaxSteps: 32,
		},
		Lock: LockConfig{
			TTL: 30 * time.Second,
		},
	}
}

// Validate checks the values that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == BackendPostgres && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres backend")
	}
	switch c.Model.Provider {
	case ProviderRules:
	case ProviderOpenAI:
		if c.Model.APIKey == "" {
			return fmt.Errorf("model.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Lock.Distributed && c.Store.Backend != BackendRedis {
		return fmt.Errorf("lock.distributed requires the redis store backend")
	}
	for _, pattern := range c.Store.Redact {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("store.redact: invalid pattern %q: %w", pattern, err)
		}
	}
	if c.Store.EncryptionKey != "" {
		if _, err := c.EncryptionKey(); err != nil {
			return err
		}
	}
	return nil
}

// EncryptionKey decodes store.encryption_key. It returns nil when unset.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Store.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
