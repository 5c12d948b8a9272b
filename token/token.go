// Package token issues and validates the bearer tokens described in
// §4.8.4: self-contained JWTs signed with either HS256 (symmetric
// secret) or EdDSA (Ed25519 key pair), grounded on the teacher's
// oidc/auth0 JWT issuance/verification idiom.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the single error surfaced for any validation
// failure: wrong issuer, bad signature, expiry, or missing claims.
var ErrInvalidToken = errors.New("token: invalid")

// Claims is the payload described in §3.
type Claims struct {
	Issuer           string `json:"iss"`
	Subject          string `json:"sub"`
	IssuedAt         int64  `json:"iat"`
	ExpiresAt        int64  `json:"exp"`
	JTI              string `json:"jti"`
	Scope            string `json:"scope"`
	AgentName        string `json:"agent_name"`
	AgentVersion     string `json:"agent_version"`
	ManifestSequence int64  `json:"manifest_sequence"`
}

func (c Claims) toRegistered() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":               c.Issuer,
		"sub":               c.Subject,
		"iat":               c.IssuedAt,
		"exp":               c.ExpiresAt,
		"jti":               c.JTI,
		"scope":             c.Scope,
		"agent_name":        c.AgentName,
		"agent_version":     c.AgentVersion,
		"manifest_sequence": c.ManifestSequence,
	}
}

// Algorithm selects the signing method.
type Algorithm string

const (
	AlgHS256 Algorithm = "HS256"
	AlgEdDSA Algorithm = "EdDSA"
)

// Signer issues and validates tokens for one configured algorithm and
// key material.
type Signer struct {
	algorithm  Algorithm
	hmacSecret []byte
	edPrivate  ed25519.PrivateKey
	edPublic   ed25519.PublicKey
	issuer     string
	clockSkew  time.Duration
	lifetime   time.Duration
}

// NewHS256Signer builds a Signer using a symmetric secret.
func NewHS256Signer(secret []byte, issuer string, lifetime, clockSkew time.Duration) *Signer {
	return &Signer{algorithm: AlgHS256, hmacSecret: secret, issuer: issuer, lifetime: lifetime, clockSkew: clockSkew}
}

// NewEdDSASigner builds a Signer using an Ed25519 key pair.
func NewEdDSASigner(priv ed25519.PrivateKey, pub ed25519.PublicKey, issuer string, lifetime, clockSkew time.Duration) *Signer {
	return &Signer{algorithm: AlgEdDSA, edPrivate: priv, edPublic: pub, issuer: issuer, lifetime: lifetime, clockSkew: clockSkew}
}

// Issue mints a token for the given subject/scope/agent metadata, filling
// in iss/iat/exp/jti automatically.
func (s *Signer) Issue(subject, scope, agentName, agentVersion string, manifestSequence int64, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.lifetime)
	claims := Claims{
		Issuer:           s.issuer,
		Subject:          subject,
		IssuedAt:         now.Unix(),
		ExpiresAt:        exp.Unix(),
		JTI:              uuid.NewString(),
		Scope:            scope,
		AgentName:        agentName,
		AgentVersion:     agentVersion,
		ManifestSequence: manifestSequence,
	}

	var method jwt.SigningMethod
	var key interface{}
	switch s.algorithm {
	case AlgHS256:
		method = jwt.SigningMethodHS256
		key = s.hmacSecret
	case AlgEdDSA:
		method = jwt.SigningMethodEdDSA
		key = s.edPrivate
	default:
		return "", time.Time{}, fmt.Errorf("token: unsupported algorithm %q", s.algorithm)
	}

	jt := jwt.NewWithClaims(method, claims.toRegistered())
	signed, err := jt.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, exp, nil
}

// Validate parses and validates a token, enforcing issuer, signature,
// expiry (with clock skew), and the presence of sub/scope. All failures
// collapse to ErrInvalidToken.
func (s *Signer) Validate(tokenString string, now time.Time) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		switch s.algorithm {
		case AlgHS256:
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.hmacSecret, nil
		case AlgEdDSA:
			if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.edPublic, nil
		default:
			return nil, fmt.Errorf("unsupported algorithm")
		}
	}, jwt.WithValidMethods([]string{string(s.algorithm)}), jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims, err := fromMapClaims(mc)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Scope == "" {
		return nil, ErrInvalidToken
	}
	if time.Unix(claims.ExpiresAt, 0).Add(s.clockSkew).Before(now) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func fromMapClaims(mc jwt.MapClaims) (*Claims, error) {
	getString := func(k string) string {
		v, _ := mc[k].(string)
		return v
	}
	getNumber := func(k string) int64 {
		switch v := mc[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		default:
			return 0
		}
	}

	return &Claims{
		Issuer:           getString("iss"),
		Subject:          getString("sub"),
		IssuedAt:         getNumber("iat"),
		ExpiresAt:        getNumber("exp"),
		JTI:              getString("jti"),
		Scope:            getString("scope"),
		AgentName:        getString("agent_name"),
		AgentVersion:     getString("agent_version"),
		ManifestSequence: getNumber("manifest_sequence"),
	}, nil
}
