package casbinacl

import (
	"context"
	"testing"

	"github.com/didauth/agentauth/acl"
	"github.com/didauth/agentauth/acl/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBannedDIDIsDenied(t *testing.T) {
	backing := memstore.New()
	s, err := New(backing)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, &acl.Entry{DID: "did:key:zban", Status: acl.StatusBanned}))

	denied, err := s.IsDenied("did:key:zban")
	require.NoError(t, err)
	assert.True(t, denied)
}

func TestApprovedDIDIsNotDenied(t *testing.T) {
	backing := memstore.New()
	s, err := New(backing)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, &acl.Entry{DID: "did:key:zok", Status: acl.StatusApproved}))

	denied, err := s.IsDenied("did:key:zok")
	require.NoError(t, err)
	assert.False(t, denied)
}

func TestDenyTakesEffectBeforeBackingStoreRead(t *testing.T) {
	backing := memstore.New()
	s, err := New(backing)
	require.NoError(t, err)

	require.NoError(t, s.Deny("did:key:zfast"))
	denied, err := s.IsDenied("did:key:zfast")
	require.NoError(t, err)
	assert.True(t, denied)
}
