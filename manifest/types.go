// Package manifest defines the self-signed agent manifest and the
// pipeline that validates its structure, signature, expiry, and
// sequence number.
package manifest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ProofType is the only supported proof type.
const ProofType = "Ed25519Signature2020"

// ProofPurpose is the only supported proof purpose.
const ProofPurpose = "assertionMethod"

// Manifest is the signed, immutable agent manifest described in §3.
type Manifest struct {
	Version      string       `json:"version"`
	ID           string       `json:"id"`
	Sequence     int64        `json:"sequence"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ValidUntil   time.Time    `json:"valid_until"`
	Revocation   *Revocation  `json:"revocation,omitempty"`
	Metadata     Metadata     `json:"metadata"`
	Capabilities Capabilities `json:"capabilities"`
	Proof        *Proof       `json:"proof,omitempty"`
}

// Revocation describes where to check whether a manifest has been
// revoked out of band.
type Revocation struct {
	Endpoint      string `json:"endpoint"`
	CheckInterval int64  `json:"check_interval,omitempty"`
}

// Metadata is free-form agent description with spec-mandated length caps.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AgentVersion string  `json:"agent_version"`
	Tags        []string `json:"tags,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	Operator    string   `json:"operator,omitempty"`
}

// Capabilities describes what the agent exposes.
type Capabilities struct {
	Interfaces          []Interface `json:"interfaces"`
	Categories          []string    `json:"categories,omitempty"`
	PermissionsRequired []string    `json:"permissions_required,omitempty"`
}

// Interface is one network endpoint the agent exposes.
type Interface struct {
	Protocol  string   `json:"protocol"`
	URL       string   `json:"url"`
	APIStandard string `json:"api_standard,omitempty"`
	Methods   []string `json:"methods,omitempty"`
	SchemaRef string   `json:"schema_ref,omitempty"`
}

// Proof is the W3C-style detached Ed25519 signature over the manifest.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verification_method"`
	ProofPurpose       string    `json:"proof_purpose"`
	ProofValue         string    `json:"proof_value"`
}

var (
	semverRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	didRe    = regexp.MustCompile(`^did:[a-z0-9]+:[^\s]+$`)
)

// ValidationError reports a single structural problem found in a
// manifest, identified by the JSON path of the offending field.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest: %s: %s", e.Path, e.Message)
}

// Validate performs the structural checks of §4.5 step 1: types, length
// caps, regex shapes for DID/semver, and the "z" prefix of the signature
// value; timestamps are time.Time values parsed during JSON decoding. It does
// not check the signature itself or temporal validity against "now" —
// that is Verifier.Verify's job.
func (m *Manifest) Validate() error {
	if !semverRe.MatchString(m.Version) {
		return &ValidationError{"version", "must be a semver string"}
	}
	if !didRe.MatchString(m.ID) {
		return &ValidationError{"id", "must be a did:<method>:<identifier> string"}
	}
	if m.Sequence < 1 {
		return &ValidationError{"sequence", "must be >= 1"}
	}
	if m.ValidUntil.IsZero() {
		return &ValidationError{"valid_until", "must be set"}
	}

	if len(m.Metadata.Name) == 0 || len(m.Metadata.Name) > 128 {
		return &ValidationError{"metadata.name", "length must be 1..128"}
	}
	if len(m.Metadata.Description) > 1024 {
		return &ValidationError{"metadata.description", "length must be <= 1024"}
	}
	if len(m.Metadata.Tags) > 10 {
		return &ValidationError{"metadata.tags", "at most 10 tags"}
	}
	for _, tag := range m.Metadata.Tags {
		if len(tag) > 32 {
			return &ValidationError{"metadata.tags[]", "each tag must be <= 32 chars"}
		}
	}

	if len(m.Capabilities.Interfaces) < 1 {
		return &ValidationError{"capabilities.interfaces", "at least one interface is required"}
	}
	if len(m.Capabilities.Categories) > 5 {
		return &ValidationError{"capabilities.categories", "at most 5 categories"}
	}
	for i, iface := range m.Capabilities.Interfaces {
		if iface.Protocol != "https" && iface.Protocol != "wss" {
			return &ValidationError{fmt.Sprintf("capabilities.interfaces[%d].protocol", i), "must be https or wss"}
		}
		if iface.URL == "" {
			return &ValidationError{fmt.Sprintf("capabilities.interfaces[%d].url", i), "must be set"}
		}
	}

	if m.Proof == nil {
		return &ValidationError{"proof", "must be present"}
	}
	if m.Proof.Type != ProofType {
		return &ValidationError{"proof.type", "must be Ed25519Signature2020"}
	}
	if m.Proof.ProofPurpose != ProofPurpose {
		return &ValidationError{"proof.proof_purpose", "must be assertionMethod"}
	}
	if !strings.HasPrefix(m.Proof.ProofValue, "z") {
		return &ValidationError{"proof.proof_value", "must start with z"}
	}
	if !strings.HasPrefix(m.Proof.VerificationMethod, m.ID) {
		return &ValidationError{"proof.verification_method", "must begin with manifest id"}
	}

	return nil
}

// WithoutProof returns a shallow copy of m with Proof cleared, suitable
// for computing the canonical signing input (the proof field must be
// absent, not present with null).
func (m *Manifest) WithoutProof() Manifest {
	cp := *m
	cp.Proof = nil
	return cp
}
