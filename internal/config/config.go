package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr       string   `mapstructure:"server_addr"`
	DatabaseDSN      string   `mapstructure:"database_dsn"`
	SigningSecret    string   `mapstructure:"signing_secret"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	MessagePageLimit int      `mapstructure:"message_page_limit"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte `mapstructure:"-"`
}

// Load reads configuration from an optional yaml file and the environment.
// Environment variables use the UNIMARKET_ prefix with underscores, e.g.
// UNIMARKET_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server_addr", ":8000")
	v.SetDefault("message_page_limit", 100)
	// register the remaining keys so env-only values survive Unmarshal
	v.SetDefault("database_dsn", "")
	v.SetDefault("signing_secret", "")
	v.SetDefault("allowed_origins", []string{})

	v.SetEnvPrefix("unimarket")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	signingKey, err := base64.StdEncoding.DecodeString(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}
	if c.MessagePageLimit <= 0 {
		return fmt.Errorf("message page limit must be positive")
	}

	return nil
}
