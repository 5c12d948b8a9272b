// Package memstore is the mandatory in-memory reference implementation
// of acl.Store, adapted from the teacher's pkg/storage/memory DID store.
package memstore

import (
	"context"
	"sync"

	"github.com/didauth/agentauth/acl"
)

// Store is a mutex-guarded map of ACL entries.
type Store struct {
	mu      sync.Mutex
	entries map[string]*acl.Entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*acl.Entry)}
}

func (s *Store) Get(ctx context.Context, did string) (*acl.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[did]
	if !exists {
		return nil, acl.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) Set(ctx context.Context, entry *acl.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[entry.DID] = &cp
	return nil
}

func (s *Store) List(ctx context.Context, status acl.Status) ([]*acl.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*acl.Entry
	for _, e := range s.entries {
		if status == "" || e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, did string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[did]; !exists {
		return acl.ErrNotFound
	}
	delete(s.entries, did)
	return nil
}

func (s *Store) GetMaxSequence(ctx context.Context, did string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[did]
	if !exists {
		return 0, nil
	}
	return e.ManifestSequence, nil
}

func (s *Store) UpdateSequence(ctx context.Context, did string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[did]
	if !exists {
		return acl.ErrNotFound
	}
	if seq <= e.ManifestSequence {
		return acl.ErrSequenceRollback
	}
	e.ManifestSequence = seq
	return nil
}

var _ acl.Store = (*Store)(nil)
