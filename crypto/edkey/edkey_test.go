package edkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("hello agent")
	sig := kp.Sign(msg)

	ok, err := Verify(kp.Public, msg, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_WrongKeyFails(t *testing.T) {
	kp1, err := Generate()
	require.NoError(t, err)
	kp2, err := Generate()
	require.NoError(t, err)

	msg := []byte("hello agent")
	sig := kp1.Sign(msg)

	ok, err := Verify(kp2.Public, msg, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_TamperedMessageFails(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	sig := kp.Sign([]byte("original"))
	ok, err := Verify(kp.Public, []byte("tampered"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_WrongLength(t *testing.T) {
	_, err := Verify([]byte{1, 2, 3}, []byte("m"), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestSign_Deterministic(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("determinism check")
	sig1 := kp.Sign(msg)
	sig2 := kp.Sign(msg)
	assert.Equal(t, sig1, sig2)
}

func TestRandomBytes_Length(t *testing.T) {
	b, err := RandomBytes(32)
	require.NoError(t, err)
	assert.Len(t, b, 32)
}
