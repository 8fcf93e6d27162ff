package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "dockside.yaml"

// CLIFlags holds command-line flag values. Nil fields (including a nil
// Plugins slice) indicate unset flags that should not override the
// config; HealthCheck is a plain bool that defaults to false.
type CLIFlags struct {
	ConfigPath    *string
	Mode          *string // "dev" or "prod"
	LogLevel      *string // DEBUG, INFO, ERROR
	ColorizeLogs  *bool
	Webhook       *bool
	SocketHost    *string
	Plugins       []string
	HealthCheck   bool
}

// ParseFlags parses command-line arguments into CLIFlags. Call this before
// LoadWithCLI. Passing nil args parses os.Args[1:]. Long-form flags only.
func ParseFlags(args []string) (CLIFlags, error) {
	var flags CLIFlags

	fs := flag.NewFlagSet("dockside", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	mode := fs.String("mode", "prod", "bot token to use: dev or prod")
	logLevel := fs.String("log-level", "INFO", "logging level: DEBUG, INFO, ERROR")
	colorize := fs.Bool("colorize_logs", true, "colorize console log output")
	webhook := fs.Bool("webhook", false, "run in webhook ingress mode instead of long-polling")
	socketHost := fs.String("socket_host", "127.0.0.1", "listen address in webhook mode")
	var plugins pluginList
	fs.Var(&plugins, "plugins", "plugin name to load (may be repeated, space-separated)")
	healthCheck := fs.Bool("health_check", false, "print health status and exit")

	if args == nil {
		args = os.Args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return flags, fmt.Errorf("parse flags: %w", err)
	}

	flags.HealthCheck = *healthCheck

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			flags.ConfigPath = configPath
		case "mode":
			flags.Mode = mode
		case "log-level":
			flags.LogLevel = logLevel
		case "colorize_logs":
			flags.ColorizeLogs = colorize
		case "webhook":
			flags.Webhook = webhook
		case "socket_host":
			flags.SocketHost = socketHost
		}
	})
	if len(plugins) > 0 {
		flags.Plugins = []string(plugins)
	}

	return flags, nil
}

// pluginList implements flag.Value, accumulating one or more plugin names
// from repeated or space-separated "--plugins" flag occurrences.
type pluginList []string

func (p *pluginList) String() string { return strings.Join(*p, ",") }

func (p *pluginList) Set(v string) error {
	*p = append(*p, strings.Fields(v)...)
	return nil
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadWithCLI returns a Config using the full hierarchy:
// defaults < YAML < ENV < CLI flags. The YAML path can be overridden
// via CLIFlags.ConfigPath.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	yamlPath := DefaultConfigFile
	if flags.ConfigPath != nil {
		yamlPath = *flags.ConfigPath
	}

	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}

	return &cfg, yamlPath, nil
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overlays CLI flag values onto cfg. Only explicitly-set flags override.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.ColorizeLogs != nil {
		cfg.Logging.Colorize = *flags.ColorizeLogs
	}
	if flags.SocketHost != nil {
		cfg.Ingress.WebhookSocketHost = *flags.SocketHost
	}
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.BotToken.ProdToken, "DOCKSIDE_PROD_TOKEN")
	setString(&cfg.BotToken.DevToken, "DOCKSIDE_DEV_TOKEN")
	setString(&cfg.AccessControl.AuthSalt, "DOCKSIDE_AUTH_SALT")
	setString(&cfg.Docker.Host, "DOCKSIDE_DOCKER_HOST")
	setString(&cfg.Docker.Engine, "DOCKSIDE_DOCKER_ENGINE")
	setString(&cfg.WebhookConfig.Cert, "DOCKSIDE_WEBHOOK_CERT")
	setString(&cfg.WebhookConfig.CertKey, "DOCKSIDE_WEBHOOK_CERT_KEY")

	setString(&cfg.Logging.Level, "DOCKSIDE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DOCKSIDE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DOCKSIDE_LOG_ASYNC")
	setBool(&cfg.Logging.Colorize, "DOCKSIDE_LOG_COLORIZE")

	setInt(&cfg.Breaker.MaxFailures, "DOCKSIDE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DOCKSIDE_BREAKER_TIMEOUT")

	setInt(&cfg.Rate.Limit, "DOCKSIDE_RATE_LIMIT")
	setDuration(&cfg.Rate.Period, "DOCKSIDE_RATE_PERIOD")

	setDuration(&cfg.Session.TTL, "DOCKSIDE_SESSION_TTL")
	setInt(&cfg.Session.MaxTOTPAttempts, "DOCKSIDE_SESSION_MAX_TOTP_ATTEMPTS")
	setDuration(&cfg.Session.BlockDuration, "DOCKSIDE_SESSION_BLOCK_DURATION")

	setDuration(&cfg.Callback.TTL, "DOCKSIDE_CALLBACK_TTL")
	setInt(&cfg.Callback.MaxNonceCache, "DOCKSIDE_CALLBACK_MAX_NONCE_CACHE")

	setDuration(&cfg.Health.Interval, "DOCKSIDE_HEALTH_INTERVAL")
	setFloat64(&cfg.Health.CPUWarnPct, "DOCKSIDE_HEALTH_CPU_WARN_PCT")
	setFloat64(&cfg.Health.MemWarnPct, "DOCKSIDE_HEALTH_MEM_WARN_PCT")

	setDuration(&cfg.Ingress.PollTimeout, "DOCKSIDE_POLL_TIMEOUT")
	setDuration(&cfg.Ingress.LongPollTimeout, "DOCKSIDE_LONG_POLL_TIMEOUT")
	setDuration(&cfg.Ingress.ShutdownDrain, "DOCKSIDE_SHUTDOWN_DRAIN")
	setString(&cfg.Ingress.WebhookSocketHost, "DOCKSIDE_WEBHOOK_SOCKET_HOST")
	setInt(&cfg.Ingress.Webhook404RatePerIP, "DOCKSIDE_WEBHOOK_404_RATE_PER_IP")
	setDuration(&cfg.Ingress.Webhook404Window, "DOCKSIDE_WEBHOOK_404_WINDOW")
}

// validate checks that required fields are set and security constraints are met.
func validate(cfg *Config) error {
	if cfg.BotToken.ProdToken == "" && cfg.BotToken.DevToken == "" {
		return errors.New("bot_token: at least one of prod_token or dev_bot_token is required")
	}
	if cfg.AccessControl.AuthSalt == "" {
		return errors.New("access_control.auth_salt is required")
	}
	if len(cfg.AccessControl.AllowedUserIDs) == 0 {
		return errors.New("access_control.allowed_user_ids must contain at least one id")
	}
	if cfg.Docker.Host == "" {
		return errors.New("docker.host is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Limit < 1 {
		return errors.New("rate.limit must be >= 1")
	}
	if cfg.Session.MaxTOTPAttempts < 1 {
		return errors.New("session.max_totp_attempts must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
