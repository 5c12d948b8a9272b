package multibase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xED, 0x01, 1, 2, 3, 4, 5},
		make([]byte, 64),
	}
	for _, b := range cases {
		enc := Encode(b)
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, b, dec)
	}
}

func TestEncode_EmptyIsZ(t *testing.T) {
	assert.Equal(t, "z", Encode(nil))
}

func TestDecode_AcceptsMissingPrefix(t *testing.T) {
	enc := Encode([]byte("hello"))
	withoutZ := enc[1:]
	dec, err := Decode(withoutZ)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), dec)
}

func TestDecode_RejectsBadAlphabet(t *testing.T) {
	_, err := Decode("z0OIl")
	assert.Error(t, err)
}
