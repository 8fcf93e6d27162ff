// Package config provides hierarchical configuration loading for dockside.
// Precedence: defaults < YAML file < environment variables < CLI flags.
package config

import (
	"time"
)

// Config holds all runtime configuration for the dockside bot.
type Config struct {
	BotToken      BotToken      `yaml:"bot_token"`
	AccessControl AccessControl `yaml:"access_control"`
	Docker        Docker        `yaml:"docker"`
	PluginsConfig PluginsConfig `yaml:"plugins_config"`
	WebhookConfig WebhookConfig `yaml:"webhook_config"`

	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Rate      Rate      `yaml:"rate"`
	Session   Session   `yaml:"session"`
	Callback  Callback  `yaml:"callback"`
	Health    Health    `yaml:"health"`
	Ingress   Ingress   `yaml:"ingress"`
}

// BotToken holds the platform bot credentials. Both are secret and must
// never appear in logs; see internal/secrets and internal/sanitize.
type BotToken struct {
	ProdToken  string `yaml:"prod_token" json:"-"`
	DevToken   string `yaml:"dev_bot_token" json:"-"`
}

// AccessControl holds the allow-lists and salt used to gate the bot.
type AccessControl struct {
	AllowedUserIDs  []int64 `yaml:"allowed_user_ids"`
	AllowedAdminIDs []int64 `yaml:"allowed_admins_ids"`
	AuthSalt        string  `yaml:"auth_salt" json:"-"`
}

// Docker holds container-engine connection configuration.
type Docker struct {
	Host   string `yaml:"host"`   // e.g. unix:///var/run/docker.sock
	Engine string `yaml:"engine"` // "docker" (default) or "podman"
}

// PluginsConfig is an opaque per-plugin configuration bag, keyed by
// plugin name, handed to each plugin's factory unmodified.
type PluginsConfig map[string]map[string]string

// WebhookConfig holds TLS material for webhook ingress mode.
type WebhookConfig struct {
	Cert    string `yaml:"cert"`
	CertKey string `yaml:"cert_key" json:"-"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level    string `yaml:"level"`
	Service  string `yaml:"service"`
	Async    bool   `yaml:"async"`
	Colorize bool   `yaml:"colorize"`
}

// Breaker holds circuit breaker configuration guarding container-engine calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds the per-user sliding-window rate limit.
type Rate struct {
	Limit  int           `yaml:"limit"`
	Period time.Duration `yaml:"period"`
}

// Session holds two-factor session lifetime and lockout parameters.
type Session struct {
	TTL             time.Duration `yaml:"ttl"`              // authenticated session lifetime (default 5m)
	MaxTOTPAttempts int           `yaml:"max_totp_attempts"` // default 4
	BlockDuration   time.Duration `yaml:"block_duration"`   // default 5m
}

// Callback holds the callback-data codec's TTL and nonce-cache sizing.
type Callback struct {
	TTL           time.Duration `yaml:"ttl"`             // default 5m
	MaxNonceCache int           `yaml:"max_nonce_cache"` // default 10000
}

// Health holds health-loop timing.
type Health struct {
	Interval    time.Duration `yaml:"interval"`     // default 60s
	CPUWarnPct  float64       `yaml:"cpu_warn_pct"`  // default 90
	MemWarnPct  float64       `yaml:"mem_warn_pct"`  // default 80
}

// Ingress holds bot update-ingress tuning shared by both polling and webhook modes.
type Ingress struct {
	PollTimeout         time.Duration `yaml:"poll_timeout"`          // default 30s
	LongPollTimeout     time.Duration `yaml:"long_poll_timeout"`     // default 60s
	ShutdownDrain       time.Duration `yaml:"shutdown_drain"`        // default 10s
	WebhookSocketHost   string        `yaml:"webhook_socket_host"`   // default 127.0.0.1
	WebhookPort         int           `yaml:"webhook_port"`          // default 8443; port 80 is refused
	Webhook404RatePerIP int           `yaml:"webhook_404_rate_per_ip"` // default 8
	Webhook404Window    time.Duration `yaml:"webhook_404_window"`    // default 10s
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Docker: Docker{
			Host:   "unix:///var/run/docker.sock",
			Engine: "docker",
		},
		Logging: Logging{
			Level:    "info",
			Service:  "dockside",
			Async:    true,
			Colorize: true,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			Limit:  20,
			Period: time.Minute,
		},
		Session: Session{
			TTL:             5 * time.Minute,
			MaxTOTPAttempts: 4,
			BlockDuration:   5 * time.Minute,
		},
		Callback: Callback{
			TTL:           5 * time.Minute,
			MaxNonceCache: 10000,
		},
		Health: Health{
			Interval:   60 * time.Second,
			CPUWarnPct: 90,
			MemWarnPct: 80,
		},
		Ingress: Ingress{
			PollTimeout:         30 * time.Second,
			LongPollTimeout:     60 * time.Second,
			ShutdownDrain:       10 * time.Second,
			WebhookSocketHost:   "127.0.0.1",
			WebhookPort:         8443,
			Webhook404RatePerIP: 8,
			Webhook404Window:    10 * time.Second,
		},
	}
}

// Token returns the bot token to use for the given mode ("dev" or "prod").
func (c *Config) Token(mode string) string {
	if mode == "dev" {
		return c.BotToken.DevToken
	}
	return c.BotToken.ProdToken
}
