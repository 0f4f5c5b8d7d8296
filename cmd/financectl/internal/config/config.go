// Package config loads financectl settings with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerlane/sessionkit"
)

// EnvPrefix is prepended to every environment override, e.g.
// FINANCECTL_API_BASE_URL.
const EnvPrefix = "FINANCECTL"

// Store kinds.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config is the complete financectl configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig locates the finance tracker backend.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	AuthScheme string        `mapstructure:"auth_scheme"`
}

// StoreConfig selects where the session is kept between invocations.
type StoreConfig struct {
	Kind        string `mapstructure:"kind"`
	Dir         string `mapstructure:"dir"`
	Namespace   string `mapstructure:"namespace"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Binder attaches extra sources, typically command-line flags, to v before
// values are read.
type Binder func(v *viper.Viper) error

// Load reads configuration from cfgFile (or the default search path), the
// environment and whatever bind attaches, in increasing precedence.
func Load(cfgFile string, bind Binder) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/financectl")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if bind != nil {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := sessionkit.DefaultConfig()

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout", def.API.Timeout)
	v.SetDefault("api.auth_scheme", def.API.AuthScheme)

	v.SetDefault("store.kind", StoreFile)
	v.SetDefault("store.dir", defaultStoreDir())
	v.SetDefault("store.namespace", def.Storage.Namespace)
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_prefix", "financectl")

	v.SetDefault("logging.level", "warn")
}

func defaultStoreDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".financectl"
	}
	return filepath.Join(dir, "financectl")
}

// Validate checks the settings financectl owns; the rest is checked by
// sessionkit when the controller is built.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file store")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store.kind %q (want %s or %s)", c.Store.Kind, StoreFile, StoreRedis)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}

// Session converts c to a controller configuration.
func (c *Config) Session() sessionkit.Config {
	cfg := sessionkit.DefaultConfig()
	cfg.API.BaseURL = c.API.BaseURL
	cfg.API.Timeout = c.API.Timeout
	cfg.API.AuthScheme = c.API.AuthScheme
	cfg.Storage.Namespace = c.Store.Namespace
	return cfg
}
