package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/didauth/agentauth/challenge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetMarkUsed(t *testing.T) {
	s := New(0)
	defer s.Dispose()
	ctx := context.Background()

	exp := time.Now().Add(time.Minute)
	require.NoError(t, s.Store(ctx, "c1", "did:key:zabc", exp))

	rec, err := s.Get(ctx, "c1", time.Now())
	require.NoError(t, err)
	assert.False(t, rec.Used)

	require.NoError(t, s.MarkUsed(ctx, "c1"))
	rec, err = s.Get(ctx, "c1", time.Now())
	require.NoError(t, err)
	assert.True(t, rec.Used)
}

func TestStore_DuplicateKeyErrors(t *testing.T) {
	s := New(0)
	defer s.Dispose()
	ctx := context.Background()

	exp := time.Now().Add(time.Minute)
	require.NoError(t, s.Store(ctx, "c1", "did:key:zabc", exp))
	err := s.Store(ctx, "c1", "did:key:zabc", exp)
	assert.ErrorIs(t, err, challenge.ErrAlreadyExists)
}

func TestGet_ExpiredIsNotFound(t *testing.T) {
	s := New(0)
	defer s.Dispose()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "c1", "did:key:zabc", time.Now().Add(-time.Second)))
	_, err := s.Get(ctx, "c1", time.Now())
	assert.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestCleanup_RemovesExpired(t *testing.T) {
	s := New(0)
	defer s.Dispose()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "c1", "did:key:zabc", time.Now().Add(-time.Second)))
	require.NoError(t, s.Store(ctx, "c2", "did:key:zdef", time.Now().Add(time.Minute)))

	n, err := s.Cleanup(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBackgroundReclaim(t *testing.T) {
	s := New(10 * time.Millisecond)
	defer s.Dispose()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "c1", "did:key:zabc", time.Now().Add(5*time.Millisecond)))
	time.Sleep(100 * time.Millisecond)

	s.mu.Lock()
	_, exists := s.records["c1"]
	s.mu.Unlock()
	assert.False(t, exists)
}
