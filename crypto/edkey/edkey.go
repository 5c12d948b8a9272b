// Package edkey wraps the standard library's Ed25519 primitives with the
// shapes this system's DID and manifest machinery expect: fixed 32-byte
// public keys, 64-byte detached signatures, and a cryptographically
// secure random source for challenges and nonces.
package edkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// match the message under the given public key.
var ErrInvalidSignature = errors.New("edkey: invalid signature")

// ErrInvalidKeyLength is returned when a key or signature byte slice does
// not have the length Ed25519 requires.
var ErrInvalidKeyLength = errors.New("edkey: invalid key or signature length")

// KeyPair holds an Ed25519 private/public key pair.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// Generate creates a new Ed25519 key pair using a cryptographically
// secure randomness source.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("edkey: generate: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// Sign produces a 64-byte detached signature over message. Ed25519
// signing is deterministic per RFC 8032: signing the same message with
// the same key always produces the same signature.
func (k *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.Private, message)
}

// Verify reports whether signature is a valid Ed25519 signature over
// message under pub. It returns a typed error only when the key or
// signature have the wrong length; a structurally valid but incorrect
// signature yields (false, nil).
func Verify(pub []byte, message, signature []byte) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, ErrInvalidKeyLength
	}
	if len(signature) != ed25519.SignatureSize {
		return false, ErrInvalidKeyLength
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, signature), nil
}

// VerifyStrict is Verify with verification failure reported as
// ErrInvalidSignature instead of a boolean, for call sites that want a
// single error-handling path.
func VerifyStrict(pub []byte, message, signature []byte) error {
	ok, err := Verify(pub, message, signature)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("edkey: random bytes: %w", err)
	}
	return b, nil
}

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
