// Package authhandler orchestrates the three endpoint flows described
// in §4.8: challenge issuance, challenge-response verification, and
// agent self-registration. It is the single component (C8) that wires
// together the canonicalizer, DID resolver, manifest verifier,
// challenge store, and ACL store, and mints the bearer token on success.
package authhandler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/didauth/agentauth/acl"
	"github.com/didauth/agentauth/challenge"
	"github.com/didauth/agentauth/crypto/edkey"
	"github.com/didauth/agentauth/manifest"
	"github.com/didauth/agentauth/multibase"
	"github.com/didauth/agentauth/ratelimit"
	"github.com/didauth/agentauth/revocation"
	"github.com/didauth/agentauth/token"
)

// Resolver resolves a DID's public key, independent of any manifest
// verification_method selection (used directly for the challenge
// signature in step 4 of §4.8.2).
type Resolver interface {
	Resolve(ctx context.Context, did string, verificationMethod string) ([]byte, error)
}

// ScopeFunc computes the token scope for a verified (did, manifest)
// pair. The default implementation returns a single static scope.
type ScopeFunc func(did string, m *manifest.Manifest) string

// DefaultScope grants a single static scope regardless of agent
// identity; deployments needing per-capability scopes inject their own
// ScopeFunc.
func DefaultScope(string, *manifest.Manifest) string {
	return "agent:authenticated"
}

// Config bundles every injected dependency and tunable for a Handler,
// per §9's "global singletons → injected dependencies" rule: the
// handler owns no process-wide state beyond what's passed in here.
type Config struct {
	Challenges challenge.Store
	ACL        acl.Store
	Verifier   *manifest.Verifier
	Resolver   Resolver
	Signer     *token.Signer

	// RateLimiter and Revocation are optional; nil disables them.
	RateLimiter *ratelimit.Limiter
	Revocation  *revocation.Checker

	// RemoteManifestFetcher is optional; nil disables the did:web
	// remote-manifest preference of §4.8.2 step 2.
	RemoteManifestFetcher ManifestFetcher

	EnableRegistration bool
	ChallengeLifetime  time.Duration // default 300s, allowed 30..600
	ClockSkew          time.Duration // default 60s, applied only to the past side
	TokenLifetime      time.Duration // must match Signer's configured lifetime; used for manifest cache TTL

	Scope          ScopeFunc
	OnRegistration func(entry *acl.Entry, m *manifest.Manifest)

	// Now is the clock source; defaults to time.Now. Tests override it.
	Now func() time.Time
}

type cachedManifest struct {
	manifest  *manifest.Manifest
	expiresAt time.Time
}

// Handler implements the three §4.8 operations.
type Handler struct {
	cfg Config

	mu            sync.Mutex
	manifestCache map[string]cachedManifest
}

// New builds a Handler from cfg, filling in spec defaults for zero-valued
// tunables.
func New(cfg Config) *Handler {
	if cfg.ChallengeLifetime == 0 {
		cfg.ChallengeLifetime = 300 * time.Second
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 60 * time.Second
	}
	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = 3600 * time.Second
	}
	if cfg.Scope == nil {
		cfg.Scope = DefaultScope
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Handler{cfg: cfg, manifestCache: make(map[string]cachedManifest)}
}

// Dispose releases every background resource the handler's injected
// stores and auxiliaries own, per §5's resource-acquisition policy.
func (h *Handler) Dispose() {
	if h.cfg.Challenges != nil {
		h.cfg.Challenges.Dispose()
	}
	h.cfg.RateLimiter.Dispose()
}

// ChallengeRequest is the §6 POST /auth/challenge body.
type ChallengeRequest struct {
	DID string `json:"did"`
}

// ChallengeResponse is the 200 response shape.
type ChallengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Challenge implements §4.8.1.
func (h *Handler) Challenge(ctx context.Context, req ChallengeRequest, clientID string) (*ChallengeResponse, error) {
	if !h.allow("challenge", clientID) {
		return nil, newError(CodeRateLimited, "rate limit exceeded")
	}
	if req.DID == "" {
		return nil, newError(CodeInvalidRequest, "did is required")
	}

	if denier, ok := h.cfg.ACL.(acl.DenyChecker); ok {
		if denied, err := denier.IsDenied(req.DID); err == nil && denied {
			if e, gerr := h.cfg.ACL.Get(ctx, req.DID); gerr == nil && e.Status == acl.StatusRejected {
				return nil, newError(CodeDidRejected, "did has been rejected")
			}
			return nil, newError(CodeDidBanned, "did is banned")
		}
	}

	entry, err := h.cfg.ACL.Get(ctx, req.DID)
	if err != nil {
		if err == acl.ErrNotFound {
			if h.cfg.EnableRegistration {
				return nil, newError(CodeDidNotFound, "unknown did; use register to request access")
			}
			return nil, newError(CodeDidNotFound, "unknown did")
		}
		return nil, newError(CodeInternalError, "acl lookup failed")
	}

	switch entry.Status {
	case acl.StatusPendingApproval:
		return nil, newErrorWithDetails(CodeDidPending, "registration is pending approval", map[string]interface{}{"retry_after": 3600})
	case acl.StatusRejected:
		return nil, newError(CodeDidRejected, "did has been rejected")
	case acl.StatusBanned:
		return nil, newError(CodeDidBanned, "did is banned")
	case acl.StatusApproved:
		// proceed
	default:
		return nil, newError(CodeInternalError, "unknown acl status")
	}

	raw, err := edkey.RandomBytes(32)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to generate challenge")
	}
	challengeHex := hex.EncodeToString(raw)
	now := h.cfg.Now()
	expiresAt := now.Add(h.cfg.ChallengeLifetime)

	if err := h.cfg.Challenges.Store(ctx, challengeHex, req.DID, expiresAt); err != nil {
		return nil, newError(CodeInternalError, "failed to persist challenge")
	}

	return &ChallengeResponse{Challenge: challengeHex, ExpiresAt: expiresAt}, nil
}

// VerifyRequest is the §6 POST /auth/verify body.
type VerifyRequest struct {
	DID       string             `json:"did"`
	Challenge string             `json:"challenge"`
	Signature string             `json:"signature"`
	Manifest  *manifest.Manifest `json:"manifest"`
}

// VerifyAgent is the nested "agent" object in the verify response.
type VerifyAgent struct {
	DID          string   `json:"did"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// VerifyResponse is the 200 response shape.
type VerifyResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Agent     VerifyAgent `json:"agent"`
}

// Verify implements §4.8.2.
func (h *Handler) Verify(ctx context.Context, req VerifyRequest, clientID string) (*VerifyResponse, error) {
	if !h.allow("verify", clientID) {
		return nil, newError(CodeRateLimited, "rate limit exceeded")
	}
	if req.DID == "" || req.Challenge == "" || req.Signature == "" || req.Manifest == nil {
		return nil, newError(CodeInvalidRequest, "did, challenge, signature, and manifest are required")
	}

	now := h.cfg.Now()

	// Step 2: optionally prefer a successfully-fetched, successfully-
	// verified remote manifest for did:web agents. Any fetch or verify
	// failure falls back silently to the request body.
	effectiveManifest := req.Manifest
	if strings.HasPrefix(req.DID, "did:web:") && h.cfg.RemoteManifestFetcher != nil {
		if remote, err := h.cfg.RemoteManifestFetcher.Fetch(ctx, req.DID); err == nil && remote != nil {
			if verr := h.cfg.Verifier.Verify(ctx, remote, now); verr == nil {
				effectiveManifest = remote
			}
		}
	}

	// Step 3: challenge state machine.
	record, err := h.cfg.Challenges.Get(ctx, req.Challenge, now)
	if err != nil {
		if err == challenge.ErrNotFound {
			return nil, newError(CodeChallengeNotFound, "challenge not found or expired")
		}
		return nil, newError(CodeInternalError, "challenge lookup failed")
	}
	if record.Used {
		return nil, newError(CodeChallengeAlreadyUsed, "challenge already used")
	}
	if record.DID != req.DID {
		return nil, newError(CodeDidMismatch, "did does not match challenge")
	}
	if record.ExpiresAt.Add(h.cfg.ClockSkew).Before(now) {
		return nil, newError(CodeExpiredChallenge, "challenge has expired")
	}

	// Step 4: resolve the agent's public key directly (not via the
	// manifest's verification_method).
	pub, err := h.cfg.Resolver.Resolve(ctx, req.DID, "")
	if err != nil {
		return nil, newError(CodeDidResolutionFailed, "failed to resolve did")
	}

	// Step 5: rebuild and verify the challenge signing input.
	expiresAtStr := record.ExpiresAt.Format(time.RFC3339)
	signingInput := req.Challenge + "." + req.DID + "." + expiresAtStr
	hash := sha256.Sum256([]byte(signingInput))

	sig, err := multibase.Decode(req.Signature)
	if err != nil || len(sig) != 64 {
		return nil, newError(CodeInvalidSignature, "invalid signature encoding")
	}
	ok, err := edkey.Verify(pub, hash[:], sig)
	if err != nil || !ok {
		return nil, newError(CodeInvalidSignature, "signature verification failed")
	}

	// Step 6: verify the manifest.
	if err := h.cfg.Verifier.Verify(ctx, effectiveManifest, now); err != nil {
		if err == manifest.ErrManifestExpired {
			return nil, newError(CodeManifestExpired, "manifest has expired")
		}
		return nil, newError(CodeInvalidManifestSignature, "manifest verification failed")
	}

	// Step 7: optional revocation check.
	if h.cfg.Revocation != nil && effectiveManifest.Revocation != nil {
		revoked, _, err := h.cfg.Revocation.IsRevoked(ctx, req.DID, effectiveManifest.Revocation.Endpoint, now)
		if revoked {
			return nil, newError(CodeManifestRevoked, "manifest has been revoked")
		}
	}

	// Step 8.
	if effectiveManifest.ID != req.DID {
		return nil, newError(CodeDidMismatch, "manifest id does not match did")
	}

	// Step 9: rollback protection.
	storedSeq, err := h.cfg.ACL.GetMaxSequence(ctx, req.DID)
	if err != nil {
		return nil, newError(CodeInternalError, "sequence lookup failed")
	}
	if effectiveManifest.Sequence <= storedSeq {
		return nil, newError(CodeManifestRollback, "manifest sequence must strictly increase")
	}

	// Step 10: advance sequence and cache the manifest.
	if err := h.cfg.ACL.UpdateSequence(ctx, req.DID, effectiveManifest.Sequence); err != nil {
		if err == acl.ErrSequenceRollback {
			return nil, newError(CodeManifestRollback, "manifest sequence must strictly increase")
		}
		return nil, newError(CodeInternalError, "failed to update sequence")
	}
	h.cacheManifest(req.DID, effectiveManifest, now)

	// Step 11: only now mark the challenge consumed.
	if err := h.cfg.Challenges.MarkUsed(ctx, req.Challenge); err != nil {
		return nil, newError(CodeInternalError, "failed to mark challenge used")
	}

	// Step 12: mint the token.
	scope := h.cfg.Scope(req.DID, effectiveManifest)
	signed, exp, err := h.cfg.Signer.Issue(req.DID, scope, effectiveManifest.Metadata.Name, effectiveManifest.Metadata.AgentVersion, effectiveManifest.Sequence, now)
	if err != nil {
		return nil, newError(CodeInternalError, "failed to issue token")
	}

	return &VerifyResponse{
		Token:     signed,
		ExpiresAt: exp,
		Agent: VerifyAgent{
			DID:          req.DID,
			Name:         effectiveManifest.Metadata.Name,
			Capabilities: strings.Split(scope, " "),
		},
	}, nil
}

// RegisterRequest is the §6 POST /auth/register body.
type RegisterRequest struct {
	Manifest *manifest.Manifest `json:"manifest"`
	Reason   string             `json:"reason,omitempty"`
}

// RegisterResponse is the 201 response shape.
type RegisterResponse struct {
	DID        string `json:"did"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after,omitempty"`
}

// Register implements §4.8.3.
func (h *Handler) Register(ctx context.Context, req RegisterRequest, clientID string) (*RegisterResponse, error) {
	if !h.cfg.EnableRegistration {
		return nil, newError(CodeInvalidRequest, "registration is disabled")
	}
	if !h.allow("register", clientID) {
		return nil, newError(CodeRateLimited, "rate limit exceeded")
	}
	if req.Manifest == nil {
		return nil, newError(CodeInvalidRequest, "manifest is required")
	}
	if len(req.Reason) > 1024 {
		return nil, newError(CodeInvalidRequest, "reason must be <= 1024 characters")
	}

	now := h.cfg.Now()
	if err := h.cfg.Verifier.Verify(ctx, req.Manifest, now); err != nil {
		if err == manifest.ErrManifestExpired {
			return nil, newError(CodeManifestExpired, "manifest has expired")
		}
		return nil, newError(CodeInvalidManifestSignature, "manifest verification failed")
	}

	did := req.Manifest.ID

	existing, err := h.cfg.ACL.Get(ctx, did)
	if err == nil {
		return &RegisterResponse{DID: did, Status: string(existing.Status), Message: "registration already on file"}, nil
	}
	if err != acl.ErrNotFound {
		return nil, newError(CodeInternalError, "acl lookup failed")
	}

	entry := &acl.Entry{
		DID:              did,
		Status:           acl.StatusPendingApproval,
		ManifestSequence: req.Manifest.Sequence,
		RegisteredAt:     now,
		UpdatedAt:        now,
		Reason:           req.Reason,
		Metadata: map[string]string{
			"name":          req.Manifest.Metadata.Name,
			"description":   req.Manifest.Metadata.Description,
			"agent_version": req.Manifest.Metadata.AgentVersion,
		},
	}
	if err := h.cfg.ACL.Set(ctx, entry); err != nil {
		return nil, newError(CodeInternalError, "failed to record registration")
	}

	if h.cfg.OnRegistration != nil {
		h.cfg.OnRegistration(entry, req.Manifest)
	}

	retryAfter := 3600
	return &RegisterResponse{
		DID:        did,
		Status:     string(acl.StatusPendingApproval),
		Message:    "registration received; awaiting approval",
		RetryAfter: &retryAfter,
	}, nil
}

func (h *Handler) allow(endpoint, clientID string) bool {
	if h.cfg.RateLimiter == nil || clientID == "" {
		return true
	}
	return h.cfg.RateLimiter.Allow(endpoint, clientID, h.cfg.Now())
}

func (h *Handler) cacheManifest(did string, m *manifest.Manifest, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.manifestCache[did] = cachedManifest{manifest: m, expiresAt: now.Add(h.cfg.TokenLifetime)}
	h.evictExpiredLocked(now)
}

// CachedManifest returns the most recently verified manifest for did, if
// still within its cache TTL.
func (h *Handler) CachedManifest(did string, now time.Time) (*manifest.Manifest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.manifestCache[did]
	if !ok || now.After(entry.expiresAt) {
		return nil, false
	}
	return entry.manifest, true
}

func (h *Handler) evictExpiredLocked(now time.Time) {
	for did, entry := range h.manifestCache {
		if now.After(entry.expiresAt) {
			delete(h.manifestCache, did)
		}
	}
}
