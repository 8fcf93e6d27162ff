package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBracketedScalarFormat(t *testing.T) {
	content := `
bot_token:
  prod_token: ["123456:prod-secret"]
  dev_bot_token: ["123456:dev-secret"]
access_control:
  allowed_user_ids: [42, 77]
  allowed_admins_ids: [42]
  auth_salt: ["pepper"]
docker:
  host: ["unix:///var/run/docker.sock"]
webhook_config:
  cert: ["/etc/dockside/cert.pem"]
  cert_key: ["/etc/dockside/key.pem"]
`
	cfg := Defaults()
	require.NoError(t, yaml.Unmarshal([]byte(content), &cfg))

	assert.Equal(t, "123456:prod-secret", cfg.BotToken.ProdToken)
	assert.Equal(t, "123456:dev-secret", cfg.BotToken.DevToken)
	assert.Equal(t, []int64{42, 77}, cfg.AccessControl.AllowedUserIDs)
	assert.Equal(t, []int64{42}, cfg.AccessControl.AllowedAdminIDs)
	assert.Equal(t, "pepper", cfg.AccessControl.AuthSalt)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Host)
	assert.Equal(t, "/etc/dockside/cert.pem", cfg.WebhookConfig.Cert)
	assert.Equal(t, "/etc/dockside/key.pem", cfg.WebhookConfig.CertKey)
}

func TestPlainScalarFormat(t *testing.T) {
	content := `
bot_token:
  prod_token: "123456:prod-secret"
docker:
  host: tcp://127.0.0.1:2375
`
	cfg := Defaults()
	require.NoError(t, yaml.Unmarshal([]byte(content), &cfg))

	assert.Equal(t, "123456:prod-secret", cfg.BotToken.ProdToken)
	assert.Equal(t, "tcp://127.0.0.1:2375", cfg.Docker.Host)
}

func TestBracketedScalarRejectsMultipleValues(t *testing.T) {
	content := `
bot_token:
  prod_token: ["one", "two"]
`
	cfg := Defaults()
	assert.Error(t, yaml.Unmarshal([]byte(content), &cfg))
}
