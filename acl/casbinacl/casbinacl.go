// Package casbinacl decorates an acl.Store with a Casbin deny-list
// fast path, grounded on agntcy-dir's authzserver.RoleResolver: a
// banned or rejected DID is refused at the Casbin layer before the
// wrapped store is ever consulted, so the deny decision is enforced
// even if the underlying store's write lags behind (e.g. a replica).
package casbinacl

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/didauth/agentauth/acl"
)

//go:embed model.conf
var modelConf string

const actAccess = "access"

// Store wraps another acl.Store, consulting a Casbin enforcer for the
// coarse allow/deny decision before falling through to the wrapped
// store for status detail and sequence tracking.
type Store struct {
	acl.Store
	enforcer *casbin.Enforcer
}

// New builds a Store wrapping backing, with a fresh in-memory Casbin
// enforcer that starts with no deny policies. Entries already in backing
// are not copied into it; only Set, Deny and Allow on this Store change
// the deny list.
func New(backing acl.Store) (*Store, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("casbinacl: load model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("casbinacl: new enforcer: %w", err)
	}
	return &Store{Store: backing, enforcer: enforcer}, nil
}

// Deny adds did to the Casbin deny list, taking effect immediately for
// every subsequent IsDenied check regardless of the backing store's
// state.
func (s *Store) Deny(did string) error {
	_, err := s.enforcer.AddPolicy(did, actAccess, "deny")
	return err
}

// Allow removes did from the Casbin deny list.
func (s *Store) Allow(did string) error {
	_, err := s.enforcer.RemovePolicy(did, actAccess, "deny")
	return err
}

// IsDenied reports whether did is fast-denied by the Casbin layer. The
// auth handler's Challenge calls this before Get so a deny takes effect
// without waiting on the backing store.
func (s *Store) IsDenied(did string) (bool, error) {
	allowed, err := s.enforcer.Enforce(did, actAccess)
	if err != nil {
		return false, fmt.Errorf("casbinacl: enforce: %w", err)
	}
	return !allowed, nil
}

// Set mirrors the entry's status into the Casbin deny list (banned and
// rejected deny, everything else allows) before delegating to the
// backing store.
func (s *Store) Set(ctx context.Context, entry *acl.Entry) error {
	if entry.Status == acl.StatusBanned || entry.Status == acl.StatusRejected {
		if err := s.Deny(entry.DID); err != nil {
			return err
		}
	} else {
		if err := s.Allow(entry.DID); err != nil {
			return err
		}
	}
	return s.Store.Set(ctx, entry)
}
