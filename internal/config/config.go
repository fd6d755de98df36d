// Package config loads aria settings from a YAML file plus ARIA_* environment
// overrides, with sane defaults for everything so a bare `aria watch <url>`
// needs no config file at all.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxRetries    = 5
	DefaultBaseDelay     = time.Second
	DefaultCapDelay      = 30 * time.Second
	DefaultFallbackAfter = 2
	DefaultPollInterval  = 15 * time.Second
	DefaultFeedLimit     = 50
)

// Config captures everything the realtime client and the dev server need.
type Config struct {
	// URL is the primary websocket endpoint.
	URL string `mapstructure:"url" yaml:"url"`
	// FallbackURL is the SSE endpoint used once websocket attempts are spent.
	FallbackURL string `mapstructure:"fallback_url" yaml:"fallback_url"`

	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	CapDelay         time.Duration `mapstructure:"cap_delay" yaml:"cap_delay"`
	FallbackAfter    int           `mapstructure:"fallback_after" yaml:"fallback_after"`
	DisableWebSocket bool          `mapstructure:"disable_websocket" yaml:"disable_websocket"`

	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	FeedLimit    int           `mapstructure:"feed_limit" yaml:"feed_limit"`

	Debug bool `mapstructure:"debug" yaml:"debug"`

	DevServer DevServerConfig `mapstructure:"devserver" yaml:"devserver"`
}

// DevServerConfig configures the scripted event server used for local
// dashboard development.
type DevServerConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Scenario string `mapstructure:"scenario" yaml:"scenario"`
	// LoopScenario replays the scenario from the start after it finishes.
	LoopScenario bool `mapstructure:"loop_scenario" yaml:"loop_scenario"`
}

// Load reads aria-config.yaml from the given path (or $HOME and the working
// directory when path is empty), applies ARIA_* environment overrides, and
// validates the result. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("aria-config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ARIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("base_delay", DefaultBaseDelay)
	v.SetDefault("cap_delay", DefaultCapDelay)
	v.SetDefault("fallback_after", DefaultFallbackAfter)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("feed_limit", DefaultFeedLimit)
	v.SetDefault("devserver.addr", "127.0.0.1:8787")
	v.SetDefault("devserver.loop_scenario", false)
}

// Validate rejects settings that would make the reconnect schedule or the
// bounded stores misbehave.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %s", c.BaseDelay)
	}
	if c.CapDelay < c.BaseDelay {
		return fmt.Errorf("cap_delay %s is below base_delay %s", c.CapDelay, c.BaseDelay)
	}
	if c.FallbackAfter < 0 {
		return fmt.Errorf("fallback_after must be >= 0, got %d", c.FallbackAfter)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.FeedLimit <= 0 {
		return fmt.Errorf("feed_limit must be positive, got %d", c.FeedLimit)
	}
	return nil
}
