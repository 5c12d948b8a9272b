package didresolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/didauth/agentauth/crypto/edkey"
	"github.com/didauth/agentauth/multibase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("did:key:zABC")
	require.NoError(t, err)
	assert.Equal(t, "key", p.Method)
	assert.Equal(t, "zABC", p.Identifier)

	_, err = Parse("not-a-did")
	assert.Error(t, err)
}

func TestDidKeyRoundTrip(t *testing.T) {
	kp, err := edkey.Generate()
	require.NoError(t, err)

	did, err := EncodeDidKey(kp.Public)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(did, "did:key:z"))

	r := New(Budget{})
	pub, err := r.Resolve(context.Background(), did, "")
	require.NoError(t, err)
	assert.Equal(t, []byte(kp.Public), pub)
}

func TestDidKey_WrongMulticodec(t *testing.T) {
	r := New(Budget{})
	_, err := r.Resolve(context.Background(), "did:key:z6Mkt", "")
	assert.ErrorIs(t, err, ErrDidResolutionFailed)

	// 34 bytes with a non-Ed25519 multicodec prefix (0xe7 0x01, secp256k1).
	wrongCodec := append([]byte{0xe7, 0x01}, make([]byte, 32)...)
	_, err = r.Resolve(context.Background(), "did:key:"+multibase.Encode(wrongCodec), "")
	assert.ErrorIs(t, err, ErrDidResolutionFailed)
}

func TestDidWeb_Resolve(t *testing.T) {
	kp, err := edkey.Generate()
	require.NoError(t, err)
	didKey, err := EncodeDidKey(kp.Public)
	require.NoError(t, err)
	multibaseKey := strings.TrimPrefix(didKey, "did:key:")

	var server *httptest.Server
	server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		doc := map[string]interface{}{
			"id": "did:web:example.invalid",
			"verificationMethod": []map[string]string{
				{
					"id":                  "did:web:example.invalid#key-1",
					"type":                "Ed25519VerificationKey2020",
					"controller":          "did:web:example.invalid",
					"publicKeyMultibase":  multibaseKey,
				},
			},
			"assertionMethod": []string{"did:web:example.invalid#key-1"},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer server.Close()

	r := New(Budget{})
	r.client = server.Client()

	// did:web encodes the port's ":" as %3A; a bare ":" would become "/".
	host := strings.ReplaceAll(strings.TrimPrefix(server.URL, "https://"), ":", "%3A")
	pub, err := r.resolveDidWeb(context.Background(), host, "")
	require.NoError(t, err)
	assert.Equal(t, []byte(kp.Public), pub)
}
