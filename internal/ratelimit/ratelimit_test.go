package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_PermitsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow(1, now))
	assert.True(t, l.Allow(1, now))
	assert.True(t, l.Allow(1, now))
	assert.False(t, l.Allow(1, now))
}

func TestAllow_WindowSlides(t *testing.T) {
	l := New(2, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow(1, now))
	assert.True(t, l.Allow(1, now))
	assert.False(t, l.Allow(1, now))

	later := now.Add(2 * time.Minute)
	assert.True(t, l.Allow(1, later))
}

func TestAllow_ExpiresExactlyAtBoundary(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow(1, now))

	// cutoff = boundary - period = now; the stored timestamp equals cutoff
	// exactly, which is not strictly greater than cutoff, so it has expired.
	boundary := now.Add(time.Minute)
	assert.True(t, l.Allow(1, boundary))

	// one nanosecond earlier, the timestamp has not yet expired.
	stillFresh := now.Add(time.Minute - time.Nanosecond)
	assert.False(t, l.Allow(1, stillFresh))
}

func TestAllow_TracksUsersIndependently(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Now()

	assert.True(t, l.Allow(1, now))
	assert.True(t, l.Allow(2, now))
	assert.False(t, l.Allow(1, now))
	assert.Equal(t, 2, l.Len())
}
