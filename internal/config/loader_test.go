package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Host)
	assert.Equal(t, "docker", cfg.Docker.Engine)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, 4, cfg.Session.MaxTOTPAttempts)
	assert.Equal(t, 10000, cfg.Callback.MaxNonceCache)
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
docker:
  host: "tcp://127.0.0.1:2375"
  engine: "podman"
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(content), 0o644))

	cfg := Defaults()
	require.NoError(t, loadYAML(&cfg, yamlPath))

	assert.Equal(t, "tcp://127.0.0.1:2375", cfg.Docker.Host)
	assert.Equal(t, "podman", cfg.Docker.Engine)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unchanged fields keep defaults
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL)
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	assert.NoError(t, err)
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("DOCKSIDE_DOCKER_HOST", "tcp://10.0.0.1:2375")
	t.Setenv("DOCKSIDE_AUTH_SALT", "s3cr3t")
	t.Setenv("DOCKSIDE_LOG_LEVEL", "warn")
	t.Setenv("DOCKSIDE_BREAKER_TIMEOUT", "1m")
	t.Setenv("DOCKSIDE_SESSION_MAX_TOTP_ATTEMPTS", "6")

	loadEnv(&cfg)

	assert.Equal(t, "tcp://10.0.0.1:2375", cfg.Docker.Host)
	assert.Equal(t, "s3cr3t", cfg.AccessControl.AuthSalt)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.Breaker.Timeout)
	assert.Equal(t, 6, cfg.Session.MaxTOTPAttempts)
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name: "no bot tokens",
			modify: func(c *Config) {
				c.BotToken.ProdToken = ""
				c.BotToken.DevToken = ""
				c.AccessControl.AuthSalt = "x"
				c.AccessControl.AllowedUserIDs = []int64{1}
			},
			errMsg: "bot_token: at least one of prod_token or dev_bot_token is required",
		},
		{
			name: "empty auth salt",
			modify: func(c *Config) {
				c.BotToken.ProdToken = "tok"
				c.AccessControl.AuthSalt = ""
				c.AccessControl.AllowedUserIDs = []int64{1}
			},
			errMsg: "access_control.auth_salt is required",
		},
		{
			name: "no allowed users",
			modify: func(c *Config) {
				c.BotToken.ProdToken = "tok"
				c.AccessControl.AuthSalt = "x"
				c.AccessControl.AllowedUserIDs = nil
			},
			errMsg: "access_control.allowed_user_ids must contain at least one id",
		},
		{
			name: "empty docker host",
			modify: func(c *Config) {
				c.BotToken.ProdToken = "tok"
				c.AccessControl.AuthSalt = "x"
				c.AccessControl.AllowedUserIDs = []int64{1}
				c.Docker.Host = ""
			},
			errMsg: "docker.host is required",
		},
		{
			name: "zero breaker failures",
			modify: func(c *Config) {
				c.BotToken.ProdToken = "tok"
				c.AccessControl.AuthSalt = "x"
				c.AccessControl.AllowedUserIDs = []int64{1}
				c.Breaker.MaxFailures = 0
			},
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name: "zero rate limit",
			modify: func(c *Config) {
				c.BotToken.ProdToken = "tok"
				c.AccessControl.AuthSalt = "x"
				c.AccessControl.AllowedUserIDs = []int64{1}
				c.Rate.Limit = 0
			},
			errMsg: "rate.limit must be >= 1",
		},
		{
			name: "zero totp attempts",
			modify: func(c *Config) {
				c.BotToken.ProdToken = "tok"
				c.AccessControl.AuthSalt = "x"
				c.AccessControl.AllowedUserIDs = []int64{1}
				c.Session.MaxTOTPAttempts = 0
			},
			errMsg: "session.max_totp_attempts must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			require.Error(t, err)
			assert.Equal(t, tt.errMsg, err.Error())
		})
	}
}

func TestValidateDefaultsNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.BotToken.ProdToken = "tok"
	cfg.AccessControl.AuthSalt = "salt"
	cfg.AccessControl.AllowedUserIDs = []int64{12345}

	assert.NoError(t, validate(&cfg))
}
