// Package challenge implements the single-use, TTL-bound challenge
// lifecycle (C6): issue a random challenge bound to a DID, look it up
// exactly once, and reclaim expired records in the background.
package challenge

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the challenge does not exist or
// has expired — the two cases are indistinguishable to callers by
// design, per §4.6's contract.
var ErrNotFound = errors.New("challenge: not found")

// ErrAlreadyExists signals an attempt to overwrite an existing challenge
// key; the handler is expected to prevent this by always generating
// fresh random values.
var ErrAlreadyExists = errors.New("challenge: already exists")

// Record is a stored challenge.
type Record struct {
	Challenge string
	DID       string
	ExpiresAt time.Time
	Used      bool
}

// Store is the pluggable backend contract for C6. Implementations:
// memstore (mandatory in-memory reference), redisstore, pgstore.
type Store interface {
	// Store inserts a new challenge record. Overwriting an existing key
	// returns ErrAlreadyExists.
	Store(ctx context.Context, challenge, did string, expiresAt time.Time) error

	// Get returns the record for challenge, or ErrNotFound if it does
	// not exist or has expired as of now. now is the caller's clock,
	// the same one threaded through every other time-sensitive
	// component (authhandler.Config.Now, manifest.Verifier.Verify,
	// token.Signer.Issue/Validate) so tests can freeze it.
	Get(ctx context.Context, challenge string, now time.Time) (*Record, error)

	// MarkUsed idempotently sets used = true on the record.
	MarkUsed(ctx context.Context, challenge string) error

	// Cleanup removes entries expired as of now and returns the count
	// removed.
	Cleanup(ctx context.Context, now time.Time) (int, error)

	// Dispose stops any background reclaim goroutine/timer owned by the
	// store. It must be safe to call once, and callers must not use the
	// store afterward.
	Dispose()
}
