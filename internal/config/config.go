package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrNoTURNServer        = errors.New("at least one TURN server is required")
	ErrBadTURNURL          = errors.New("TURN url must start with 'turn:' or 'turns:'")
	ErrMissingTURNUsername = errors.New("TURN username is required")
	ErrMissingTURNPassword = errors.New("TURN credential is required")
	ErrMissingSignalURL    = errors.New("signal_url is required")
)

type ICEConfig struct {
	STUNURLs       []string `mapstructure:"stun_urls"`
	TURNURLs       []string `mapstructure:"turn_urls"`
	TURNUsername   string   `mapstructure:"turn_username"`
	TURNCredential string   `mapstructure:"turn_credential"`
}

type ReconnectConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
}

type HealthConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type Config struct {
	Mode      string          `mapstructure:"mode"`
	Port      int             `mapstructure:"port"`
	SignalURL string          `mapstructure:"signal_url"`
	Username  string          `mapstructure:"username"`
	LogLevel  string          `mapstructure:"log_level"`
	ICE       ICEConfig       `mapstructure:"ice"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Health    HealthConfig    `mapstructure:"health"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("log_level", "info")
	v.SetDefault("ice.stun_urls", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("reconnect.initial_interval", "1s")
	v.SetDefault("reconnect.max_attempts", 3)
	v.SetDefault("health.interval", "30s")
	v.SetDefault("health.stale_after", "45s")

	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults and env\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on broken TURN configuration. A channel without a
// working relay cannot recover from ICE failure, so this is a startup error,
// not a runtime one.
func (c *Config) Validate() error {
	if c.SignalURL == "" {
		return ErrMissingSignalURL
	}
	if len(c.ICE.TURNURLs) == 0 {
		return ErrNoTURNServer
	}
	for _, u := range c.ICE.TURNURLs {
		if !strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
			return fmt.Errorf("%w: %q", ErrBadTURNURL, u)
		}
	}
	if c.ICE.TURNUsername == "" {
		return ErrMissingTURNUsername
	}
	if c.ICE.TURNCredential == "" {
		return ErrMissingTURNPassword
	}
	if c.Reconnect.InitialInterval <= 0 {
		return errors.New("reconnect.initial_interval must be positive")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return errors.New("reconnect.max_attempts must be positive")
	}
	return nil
}
