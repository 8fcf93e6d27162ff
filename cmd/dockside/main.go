package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"time"

	dockerclient "github.com/docker/docker/client"

	"github.com/Strob0t/dockside/internal/access"
	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/bot/handlers"
	"github.com/Strob0t/dockside/internal/callback"
	"github.com/Strob0t/dockside/internal/config"
	"github.com/Strob0t/dockside/internal/container"
	"github.com/Strob0t/dockside/internal/logger"
	"github.com/Strob0t/dockside/internal/plugin"
	"github.com/Strob0t/dockside/internal/ratelimit"
	"github.com/Strob0t/dockside/internal/resilience"
	"github.com/Strob0t/dockside/internal/sanitize"
	"github.com/Strob0t/dockside/internal/secrets"
	"github.com/Strob0t/dockside/internal/session"
)

const (
	issuer          = "dockside"
	pluginsBasePath = "plugins"
	sweepInterval   = time.Hour
	maxEngineCalls  = 8
)

func main() {
	// Temporary bootstrap logger until config is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	if flags.HealthCheck {
		os.Exit(runHealthCheck(flags))
	}

	if err := run(flags); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(flags config.CLIFlags) error {
	cfg, yamlPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Replace bootstrap logger with configured one.
	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	mode := "prod"
	if flags.Mode != nil {
		mode = *flags.Mode
	}
	token := cfg.Token(mode)
	if token == "" {
		return fmt.Errorf("config: no %s bot token configured", mode)
	}

	slog.Info("config loaded",
		"file", yamlPath,
		"mode", mode,
		"log_level", cfg.Logging.Level,
		"engine", cfg.Docker.Engine,
		"allowed_users", len(cfg.AccessControl.AllowedUserIDs),
		"allowed_admins", len(cfg.AccessControl.AllowedAdminIDs),
	)

	ctx := context.Background()

	// --- Infrastructure ---

	vault := secrets.NewVault(map[string]string{
		"bot_token": token,
		"auth_salt": cfg.AccessControl.AuthSalt,
	})
	slog.Info("credentials ready",
		"bot_token", vault.Redacted("bot_token"),
		"auth_salt", vault.Redacted("auth_salt"))

	sanitizer := sanitize.NewSecrets(
		cfg.BotToken.ProdToken,
		cfg.BotToken.DevToken,
		cfg.AccessControl.AuthSalt,
		cfg.Docker.Host,
		cfg.WebhookConfig.CertKey,
	)

	sessions := session.NewStore(cfg.AccessControl.AuthSalt, issuer,
		cfg.Session.TTL, cfg.Session.BlockDuration, cfg.Session.MaxTOTPAttempts)

	codecKey := sha256.Sum256([]byte(cfg.AccessControl.AuthSalt))
	codec, err := callback.New(codecKey[:], cfg.Callback.MaxNonceCache, cfg.Callback.TTL)
	if err != nil {
		return fmt.Errorf("callback codec: %w", err)
	}
	defer codec.Close()

	engine, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(cfg.Docker.Host),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return fmt.Errorf("container engine: %w", err)
	}
	defer engine.Close()
	slog.Info("container engine client ready", "engine", cfg.Docker.Engine)

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	facade := container.New(engine, maxEngineCalls, breaker, sessions,
		cfg.AccessControl.AllowedAdminIDs, log)
	metrics := container.NewMetricsFacade()

	platform := bot.NewHTTPClient(token, "")

	// --- Middleware ---

	// Admins outside the user allow-list still pass access control; the
	// admin predicate itself is checked independently on every mutating
	// call.
	allowed := make([]int64, 0, len(cfg.AccessControl.AllowedUserIDs)+len(cfg.AccessControl.AllowedAdminIDs))
	allowed = append(allowed, cfg.AccessControl.AllowedUserIDs...)
	allowed = append(allowed, cfg.AccessControl.AllowedAdminIDs...)

	ctrl := access.New(allowed)
	stopSweeper := ctrl.StartSweeper(sweepInterval)
	defer stopSweeper()

	limiter := ratelimit.New(cfg.Rate.Limit, cfg.Rate.Period)

	chain := []bot.Middleware{
		bot.NewAccessMiddleware(ctrl, platform, log),
		bot.NewRateLimitMiddleware(limiter, platform, log),
	}

	// --- Handlers & plugins ---

	h := handlers.New(platform, sessions, facade, metrics, codec, sanitizer,
		cfg.AccessControl.AllowedAdminIDs, token, log)

	mgr := plugin.NewManager(pluginsBasePath, plugin.RunningInContainer(),
		plugin.Env{Client: platform, Log: log}, cfg.PluginsConfig, log)
	defer mgr.Shutdown()

	reg := bot.NewRegistry()
	h.Register(reg, func(r *bot.Registry) {
		mgr.LoadAll(flags.Plugins, r)
	})

	// --- Ingress ---

	var webhook *bot.WebhookServer
	if flags.Webhook != nil && *flags.Webhook {
		webhook, err = bot.NewWebhookServer(cfg.Ingress.WebhookSocketHost, cfg.Ingress.WebhookPort,
			token, cfg.WebhookConfig, cfg.Ingress, log)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}

		var certPEM []byte
		if cfg.WebhookConfig.Cert != "" {
			certPEM, err = os.ReadFile(cfg.WebhookConfig.Cert)
			if err != nil {
				return fmt.Errorf("webhook cert: %w", err)
			}
		}
		url := fmt.Sprintf("https://%s/webhook/%s/", webhook.Addr(), token)
		if err := platform.SetWebhook(ctx, url, certPEM); err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
	} else {
		// Polling mode must not fight a stale webhook registration.
		if err := platform.DeleteWebhook(ctx); err != nil {
			slog.Warn("delete stale webhook failed", "error", sanitizer.Redact(err.Error()))
		}
	}

	rt := bot.NewRuntime(platform, reg, chain, metrics, sanitizer, webhook,
		cfg.Ingress, cfg.Health, log)

	return rt.Run(ctx)
}
