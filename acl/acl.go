// Package acl implements the per-DID access-control and
// sequence-tracking store (C7).
package acl

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a DID in the ACL.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusBanned          Status = "banned"
)

// ErrNotFound is returned when no ACL entry exists for a DID.
var ErrNotFound = errors.New("acl: not found")

// ErrSequenceRollback is returned by UpdateSequence when the proposed
// sequence does not strictly exceed the stored one.
var ErrSequenceRollback = errors.New("acl: sequence rollback")

// Entry is one DID's ACL record.
type Entry struct {
	DID             string
	Status          Status
	ManifestSequence int64
	RegisteredAt    time.Time
	UpdatedAt       time.Time
	Reason          string
	Metadata        map[string]string
}

// Store is the pluggable C7 backend contract.
type Store interface {
	// Get returns the entry for did, or ErrNotFound.
	Get(ctx context.Context, did string) (*Entry, error)

	// Set inserts or replaces the entry for entry.DID.
	Set(ctx context.Context, entry *Entry) error

	// List returns entries, optionally filtered by status. A zero
	// Status value lists every entry.
	List(ctx context.Context, status Status) ([]*Entry, error)

	// Delete removes the entry for did.
	Delete(ctx context.Context, did string) error

	// GetMaxSequence returns the highest accepted manifest sequence for
	// did, or 0 if unknown.
	GetMaxSequence(ctx context.Context, did string) (int64, error)

	// UpdateSequence advances the stored sequence for did to seq. It
	// must be monotonic: if seq is not strictly greater than the
	// current stored value, it returns ErrSequenceRollback, even under
	// concurrent callers racing on the same DID.
	UpdateSequence(ctx context.Context, did string, seq int64) error
}

// DenyChecker is an optional capability a Store implementation may offer
// for a fast, synchronous deny decision ahead of its regular Get — e.g. a
// decorator backed by a policy engine that can enforce a ban even if the
// wrapped store's own write has not yet propagated. Callers should type-
// assert a Store against this interface and treat its absence as "no
// fast path available".
type DenyChecker interface {
	IsDenied(did string) (bool, error)
}
