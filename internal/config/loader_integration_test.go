package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests that exercise the full LoadFrom pipeline:
// defaults < YAML < environment variables.

func validMinimalYAML() string {
	return `
bot_token:
  prod_token: "tok"
access_control:
  auth_salt: "salt"
  allowed_user_ids: [12345]
`
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets level=debug, env overrides to warn. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(validMinimalYAML()+`
logging:
  level: "debug"
`), 0o644))

	t.Setenv("DOCKSIDE_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFrom_YAMLPartialOverride(t *testing.T) {
	// YAML sets only logging.level; all other fields keep defaults.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(validMinimalYAML()+`
logging:
  level: "error"
`), 0o644))

	cfg, err := LoadFrom(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	// Defaults preserved
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Host)
	assert.Equal(t, 10000, cfg.Callback.MaxNonceCache)
}

func TestLoadFrom_EnvInvalidValues(t *testing.T) {
	// Invalid env values are silently ignored; defaults survive.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(validMinimalYAML()), 0o644))

	t.Setenv("DOCKSIDE_SESSION_MAX_TOTP_ATTEMPTS", "notanumber")
	t.Setenv("DOCKSIDE_BREAKER_TIMEOUT", "invalid-duration")
	t.Setenv("DOCKSIDE_HEALTH_CPU_WARN_PCT", "abc")

	cfg, err := LoadFrom(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Session.MaxTOTPAttempts)
	assert.Equal(t, "30s", cfg.Breaker.Timeout.String())
	assert.InDelta(t, 90.0, cfg.Health.CPUWarnPct, 0.001)
}

func TestLoadFrom_MissingYAMLFile(t *testing.T) {
	// Non-existent YAML => pure defaults, no error, but validation fails
	// since no bot token/salt/allowed ids are set by default.
	_, err := LoadFrom("/nonexistent/path/to/config.yaml")
	require.Error(t, err)
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`{{{invalid yaml`), 0o644))

	_, err := LoadFrom(yamlPath)
	require.Error(t, err)
}

func TestLoadFrom_ValidationAfterOverride(t *testing.T) {
	// YAML clears the docker host => validation error.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(validMinimalYAML()+`
docker:
  host: ""
`), 0o644))

	_, err := LoadFrom(yamlPath)
	require.Error(t, err)
}

func TestLoadWithCLI_FlagOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(validMinimalYAML()+`
logging:
  level: "info"
  colorize: false
`), 0o644))

	flags, err := ParseFlags([]string{
		"--config", yamlPath,
		"--log-level", "error",
		"--colorize_logs=true",
		"--socket_host", "0.0.0.0",
	})
	require.NoError(t, err)

	cfg, resolvedPath, err := LoadWithCLI(flags)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, resolvedPath)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Colorize)
	assert.Equal(t, "0.0.0.0", cfg.Ingress.WebhookSocketHost)
}

func TestParseFlags_Plugins(t *testing.T) {
	flags, err := ParseFlags([]string{"--plugins", "outline", "--plugins", "monitor"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outline", "monitor"}, flags.Plugins)
}

func TestParseFlags_HealthCheck(t *testing.T) {
	flags, err := ParseFlags([]string{"--health_check"})
	require.NoError(t, err)
	assert.True(t, flags.HealthCheck)
}
