package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WrapsAndUnwraps(t *testing.T) {
	cause := errors.New("container not found")
	err := New(CodeContainer, cause).WithMeta("container_id", "abc123")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "abc123", err.Meta["container_id"])
	assert.Contains(t, err.Error(), "CONTAINER")
}

func TestError_NoMetaIsSafe(t *testing.T) {
	err := New(CodeAuth, ErrNotFound)
	assert.Equal(t, "AUTH: not found", err.Error())
}
