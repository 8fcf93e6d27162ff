package callback

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New([]byte("0123456789abcdef0123456789abcdef"), 1000, 5*time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Unix(1_700_000_000, 0)

	token, err := c.Encode("restart", map[string]string{"id": "abc123"}, 42, 7, now)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(token), maxWireSize)

	payload, err := c.Decode(token, 42, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "restart", payload.Action)
	assert.Equal(t, "abc123", payload.Params["id"])
	assert.Equal(t, uint32(42), payload.UserID)
}

func TestDecode_RejectsTampering(t *testing.T) {
	c := newTestCodec(t)
	now := time.Unix(1_700_000_000, 0)

	token, err := c.Encode("stop", nil, 1, 1, now)
	require.NoError(t, err)

	tampered := strings.Replace(token, token[:1], "Z", 1)
	_, err = c.Decode(tampered, 1, now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_RejectsExpired(t *testing.T) {
	c := newTestCodec(t)
	now := time.Unix(1_700_000_000, 0)

	token, err := c.Encode("stop", nil, 1, 2, now)
	require.NoError(t, err)

	_, err = c.Decode(token, 1, now.Add(6*time.Minute))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_HonorsConfiguredTTL(t *testing.T) {
	c, err := New([]byte("0123456789abcdef0123456789abcdef"), 1000, 30*time.Second)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	now := time.Unix(1_700_000_000, 0)
	token, err := c.Encode("stop", nil, 1, 9, now)
	require.NoError(t, err)

	_, err = c.Decode(token, 1, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_RejectsReplay(t *testing.T) {
	c := newTestCodec(t)
	now := time.Unix(1_700_000_000, 0)

	token, err := c.Encode("stop", nil, 1, 3, now)
	require.NoError(t, err)

	_, err = c.Decode(token, 1, now)
	require.NoError(t, err)

	_, err = c.Decode(token, 1, now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_RejectsWrongUser(t *testing.T) {
	c := newTestCodec(t)
	now := time.Unix(1_700_000_000, 0)

	token, err := c.Encode("stop", nil, 1, 4, now)
	require.NoError(t, err)

	_, err = c.Decode(token, 999, now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEncode_RejectsBadAction(t *testing.T) {
	c := newTestCodec(t)
	_, err := c.Encode("Not-Valid!", nil, 1, 1, time.Now())
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEncode_RejectsTooManyParams(t *testing.T) {
	c := newTestCodec(t)
	params := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5", "f": "6"}
	_, err := c.Encode("stop", params, 1, 1, time.Now())
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	c := newTestCodec(t)
	_, err := c.Decode("not-a-real-token", 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalid)
}
