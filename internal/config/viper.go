package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. TOLLGATE_STORE_BACKEND.
const EnvPrefix = "TOLLGATE"

// InitViper creates a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the caller)
//  2. Environment variables (TOLLGATE_SERVER_LISTEN, TOLLGATE_STORE_DSN, etc.)
//  3. tollgate.yaml values
//  4. Defaults from NewDefaultConfig()
//
// An explicit configFile must exist; otherwise tollgate.yaml is looked up in
// the working directory and in .tollgate/, and its absence is fine.
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tollgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(".tollgate")
	}

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setViperDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("server.listen", d.Server.Listen)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_password", d.Store.RedisPassword)
	v.SetDefault("store.redis_db", d.Store.RedisDB)
	v.SetDefault("store.ttl", d.Store.TTL)
	v.SetDefault("store.encryption_key", d.Store.EncryptionKey)
	v.SetDefault("store.redact", d.Store.Redact)

	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.api_key", d.Model.APIKey)
	v.SetDefault("model.name", d.Model.Name)

	v.SetDefault("tools.file", d.Tools.File)

	v.SetDefault("engine.reject_all", d.Engine.RejectAll)
	v.SetDefault("engine.max_steps", d.Engine.MaxSteps)

	v.SetDefault("lock.distributed", d.Lock.Distributed)
	v.SetDefault("lock.ttl", d.Lock.TTL)
}
