// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the guild bot.
type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Bot      BotConfig      `yaml:"bot"`
	Channels ChannelsConfig `yaml:"channels"`
	Recall   RecallConfig   `yaml:"recall"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// GitHubConfig holds settings for the organization activity poller.
type GitHubConfig struct {
	APIURL         string        `yaml:"api_url"`
	Org            string        `yaml:"org"`
	Token          string        `yaml:"token"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	DeliveryWindow time.Duration `yaml:"delivery_window"`

	// Outbound request throttling against the GitHub API
	RequestRate    float64       `yaml:"request_rate"`  // requests per second
	RequestBurst   int           `yaml:"request_burst"` // burst allowance
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the events endpoint.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// GatewayConfig holds settings for the platform event stream connection.
type GatewayConfig struct {
	URL          string        `yaml:"url"`
	Compression  bool          `yaml:"compression"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

// BotConfig holds command layer settings.
type BotConfig struct {
	Prefix string `yaml:"prefix"`  // command prefix
	UserID string `yaml:"user_id"` // the bot's own platform user id
}

// ChannelsConfig holds well-known channel identifiers.
type ChannelsConfig struct {
	WelcomeID string `yaml:"welcome_id"`
	UpdatesID string `yaml:"updates_id"`
}

// RecallConfig holds snipe cache settings.
type RecallConfig struct {
	Capacity int `yaml:"capacity"` // entries kept per channel ring
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ServerConfig holds health and telemetry surface configuration.
type ServerConfig struct {
	HealthAddr      string        `yaml:"health_addr"`
	HealthEnabled   bool          `yaml:"health_enabled"`
	MetricsAddr     string        `yaml:"metrics_addr"` // OTLP endpoint
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	OtelServiceName     string  `yaml:"otel_service_name"`
	OtelServiceVersion  string  `yaml:"otel_service_version"`
	OtelTracesEnabled   bool    `yaml:"otel_traces_enabled"`
	OtelTraceSampleRate float64 `yaml:"otel_trace_sample_rate"` // 0.0 to 1.0
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:         "https://api.github.com",
			Org:            "",
			PollInterval:   5 * time.Minute,
			DeliveryWindow: 10 * time.Minute,
			RequestRate:    5,
			RequestBurst:   10,
			RequestTimeout: 15 * time.Second,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     60 * time.Second,
			},
		},
		Gateway: GatewayConfig{
			Compression:  false,
			ReconnectMin: time.Second,
			ReconnectMax: time.Minute,
		},
		Bot: BotConfig{
			Prefix: "$",
		},
		Recall: RecallConfig{
			Capacity: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			HealthAddr:      ":8081",
			HealthEnabled:   true,
			MetricsAddr:     "localhost:4317",
			MetricsEnabled:  false,
			ShutdownTimeout: 30 * time.Second,

			OtelServiceName:     "guildbot",
			OtelServiceVersion:  "0.1.0",
			OtelTracesEnabled:   false,
			OtelTraceSampleRate: 0.1,
		},
	}
}

// Load loads configuration from a YAML file. A missing file falls back
// to defaults, but every returned config is validated: defaults alone
// lack a GitHub organization, so running without a usable config file
// fails here instead of producing a daemon whose every tick errors.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.GitHub.APIURL == "" {
		return fmt.Errorf("github.api_url cannot be empty")
	}
	if c.GitHub.Org == "" {
		return fmt.Errorf("github.org cannot be empty")
	}
	if c.GitHub.PollInterval < 10*time.Second {
		return fmt.Errorf("github.poll_interval must be at least 10 seconds")
	}
	if c.GitHub.DeliveryWindow < time.Minute {
		return fmt.Errorf("github.delivery_window must be at least 1 minute")
	}
	if c.GitHub.RequestRate <= 0 {
		return fmt.Errorf("github.request_rate must be positive")
	}
	if c.GitHub.RequestBurst < 1 {
		return fmt.Errorf("github.request_burst must be at least 1")
	}
	if c.GitHub.RequestTimeout < time.Second {
		return fmt.Errorf("github.request_timeout must be at least 1 second")
	}
	if c.GitHub.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("github.breaker.failure_threshold must be at least 1")
	}

	if c.Gateway.ReconnectMin <= 0 {
		return fmt.Errorf("gateway.reconnect_min must be positive")
	}
	if c.Gateway.ReconnectMax < c.Gateway.ReconnectMin {
		return fmt.Errorf("gateway.reconnect_max must be at least gateway.reconnect_min")
	}

	if c.Bot.Prefix == "" {
		return fmt.Errorf("bot.prefix cannot be empty")
	}

	if c.Recall.Capacity < 1 {
		return fmt.Errorf("recall.capacity must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if c.Server.HealthEnabled && c.Server.HealthAddr == "" {
		return fmt.Errorf("server.health_addr required when health endpoint is enabled")
	}
	if c.Server.MetricsEnabled {
		if c.Server.MetricsAddr == "" {
			return fmt.Errorf("server.metrics_addr required when metrics are enabled")
		}
		if c.Server.OtelServiceName == "" {
			return fmt.Errorf("server.otel_service_name cannot be empty when metrics enabled")
		}
		if c.Server.OtelTraceSampleRate < 0.0 || c.Server.OtelTraceSampleRate > 1.0 {
			return fmt.Errorf("server.otel_trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
