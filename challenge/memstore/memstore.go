// Package memstore is the mandatory in-memory reference implementation
// of challenge.Store, adapted from the teacher's pkg/storage/memory
// nonce store and its session.NonceCache background-reclaim ticker.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/didauth/agentauth/challenge"
)

// Store is a mutex-guarded map of challenge records with a background
// reclaim loop.
type Store struct {
	mu      sync.Mutex
	records map[string]*challenge.Record

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Store and starts its background reclaim loop, running
// every interval. An interval <= 0 disables the background loop;
// Cleanup can still be invoked manually.
func New(interval time.Duration) *Store {
	s := &Store{
		records: make(map[string]*challenge.Record),
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go s.gcLoop(interval)
	}
	return s
}

func (s *Store) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			_, _ = s.Cleanup(context.Background(), now)
		case <-s.stop:
			return
		}
	}
}

func (s *Store) Store(ctx context.Context, ch, did string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[ch]; exists {
		return challenge.ErrAlreadyExists
	}
	s.records[ch] = &challenge.Record{
		Challenge: ch,
		DID:       did,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ch string, now time.Time) (*challenge.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[ch]
	if !exists {
		return nil, challenge.ErrNotFound
	}
	if now.After(rec.ExpiresAt) {
		return nil, challenge.ErrNotFound
	}

	cp := *rec
	return &cp, nil
}

func (s *Store) MarkUsed(ctx context.Context, ch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[ch]
	if !exists {
		return challenge.ErrNotFound
	}
	rec.Used = true
	return nil
}

func (s *Store) Cleanup(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, key)
			count++
		}
	}
	return count, nil
}

func (s *Store) Dispose() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
