package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVault_Redacted(t *testing.T) {
	v := NewVault(map[string]string{
		"bot_token": "123456:very-long-secret-token",
		"auth_salt": "pepper",
		"short":     "abc",
		"empty":     "",
	})

	assert.Equal(t, "12****", v.Redacted("bot_token"))
	assert.Equal(t, "pe****", v.Redacted("auth_salt"))
	assert.Equal(t, "****", v.Redacted("short"))
	assert.Empty(t, v.Redacted("empty"))
	assert.Empty(t, v.Redacted("nosuch"))
}

func TestVault_CopiesInput(t *testing.T) {
	src := map[string]string{"bot_token": "123456:token"}
	v := NewVault(src)

	src["bot_token"] = "mutated"
	assert.Equal(t, "12****", v.Redacted("bot_token"))
}
