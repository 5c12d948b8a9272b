package main

import (
	"encoding/hex"
	"testing"

	"github.com/didauth/agentauth/crypto/edkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPairFromSeedHex_RoundTrip(t *testing.T) {
	kp, err := edkey.Generate()
	require.NoError(t, err)

	seedHex := hex.EncodeToString(kp.Private.Seed())
	got, err := keyPairFromSeedHex(seedHex + "\n")
	require.NoError(t, err)

	assert.Equal(t, []byte(kp.Public), []byte(got.Public))
	assert.Equal(t, []byte(kp.Private), []byte(got.Private))
}

func TestKeyPairFromSeedHex_WrongLength(t *testing.T) {
	_, err := keyPairFromSeedHex(hex.EncodeToString([]byte("too-short")))
	assert.Error(t, err)
}

func TestKeyPairFromSeedHex_BadHex(t *testing.T) {
	_, err := keyPairFromSeedHex("not-hex-at-all")
	assert.Error(t, err)
}

func TestTrimNewline(t *testing.T) {
	assert.Equal(t, "abc123", trimNewline("abc123\r\n"))
	assert.Equal(t, "abc123", trimNewline("abc123  "))
	assert.Equal(t, "", trimNewline("\n\n"))
}
