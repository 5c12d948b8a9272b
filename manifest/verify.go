package manifest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/didauth/agentauth/canon"
	"github.com/didauth/agentauth/crypto/edkey"
	"github.com/didauth/agentauth/didresolve"
	"github.com/didauth/agentauth/multibase"
)

// Errors returned by Verify. Callers map these to the §7 error taxonomy.
var (
	ErrManifestExpired      = errors.New("manifest: expired")
	ErrInvalidManifestSig   = errors.New("manifest: invalid signature")
	ErrManifestInvalidInput = errors.New("manifest: invalid request")
)

// Resolver resolves a DID's verification method to a public key. It is
// the subset of didresolve.Resolver that the verifier depends on, kept
// as an interface so tests and callers can substitute a stub.
type Resolver interface {
	Resolve(ctx context.Context, did string, verificationMethod string) ([]byte, error)
}

// Verifier runs the §4.5 manifest verification pipeline.
type Verifier struct {
	resolver  Resolver
	clockSkew time.Duration
}

// NewVerifier builds a Verifier backed by resolver, applying clockSkew to
// the "past" side of temporal checks only.
func NewVerifier(resolver Resolver, clockSkew time.Duration) *Verifier {
	return &Verifier{resolver: resolver, clockSkew: clockSkew}
}

// Verify validates m's structure, resolves
// its signer, checks the Ed25519 proof, and enforces the temporal
// bounds. On success it returns nil; the manifest itself is unchanged.
func (v *Verifier) Verify(ctx context.Context, m *Manifest, now time.Time) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrManifestInvalidInput, err)
	}

	pub, err := v.resolver.Resolve(ctx, m.ID, m.Proof.VerificationMethod)
	if err != nil {
		return err
	}

	unsigned := m.WithoutProof()
	canonBytes, err := canon.Marshal(&unsigned)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestInvalidInput, err)
	}
	hash := sha256.Sum256(canonBytes)

	sig, err := multibase.Decode(m.Proof.ProofValue)
	if err != nil || len(sig) != 64 {
		return ErrInvalidManifestSig
	}

	ok, err := edkey.Verify(pub, hash[:], sig)
	if err != nil || !ok {
		return ErrInvalidManifestSig
	}

	if m.ValidUntil.Add(v.clockSkew).Before(now) {
		return ErrManifestExpired
	}
	if m.ValidUntil.After(now.Add(365 * 24 * time.Hour)) {
		return ErrManifestInvalidInput
	}

	return nil
}

// Sign is a client-side helper (used by cmd/agentauthctl and by tests
// constructing fixtures) that computes the proof for a manifest given an
// Ed25519 key pair. It mutates m.Proof in place.
func Sign(m *Manifest, kp *edkey.KeyPair, verificationMethod string, now time.Time) error {
	m.Proof = nil
	canonBytes, err := canon.Marshal(m)
	if err != nil {
		return err
	}
	hash := sha256.Sum256(canonBytes)
	sig := kp.Sign(hash[:])

	m.Proof = &Proof{
		Type:               ProofType,
		Created:            now,
		VerificationMethod: verificationMethod,
		ProofPurpose:       ProofPurpose,
		ProofValue:         multibase.Encode(sig),
	}
	return nil
}

// ensure didresolve.Resolver satisfies Resolver at compile time.
var _ Resolver = (*didresolve.Resolver)(nil)
