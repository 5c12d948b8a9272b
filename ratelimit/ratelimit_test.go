package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_PermitsUpToLimit(t *testing.T) {
	l := New(3, time.Minute, 0)
	now := time.Now()

	assert.True(t, l.Allow("verify", "client-a", now))
	assert.True(t, l.Allow("verify", "client-a", now))
	assert.True(t, l.Allow("verify", "client-a", now))
	assert.False(t, l.Allow("verify", "client-a", now))
}

func TestAllow_SeparateKeysIndependent(t *testing.T) {
	l := New(1, time.Minute, 0)
	now := time.Now()

	assert.True(t, l.Allow("verify", "client-a", now))
	assert.True(t, l.Allow("register", "client-a", now))
	assert.True(t, l.Allow("verify", "client-b", now))
	assert.False(t, l.Allow("verify", "client-a", now))
}

func TestAllow_WindowSlides(t *testing.T) {
	l := New(1, time.Minute, 0)
	start := time.Now()

	assert.True(t, l.Allow("verify", "client-a", start))
	assert.False(t, l.Allow("verify", "client-a", start.Add(time.Second*30)))
	assert.True(t, l.Allow("verify", "client-a", start.Add(time.Minute+time.Second)))
}

func TestAllow_NilLimiterAlwaysAllows(t *testing.T) {
	var l *Limiter
	assert.True(t, l.Allow("verify", "client-a", time.Now()))
	l.Dispose()
}

func TestCompact_RemovesStaleKeys(t *testing.T) {
	l := New(5, time.Millisecond*20, time.Millisecond*5)
	defer l.Dispose()

	now := time.Now()
	l.Allow("verify", "client-a", now)

	time.Sleep(time.Millisecond * 80)

	l.mu.Lock()
	_, exists := l.windows[key("verify", "client-a")]
	l.mu.Unlock()
	assert.False(t, exists)
}
