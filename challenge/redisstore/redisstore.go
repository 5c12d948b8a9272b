// Package redisstore backs challenge.Store with Redis, mapping a
// challenge's TTL directly onto a Redis key expiry rather than a
// separately-tracked expires_at column, grounded on the go-redis usage
// observed in the retrieval pack's TracePost-larvaeChain backend.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didauth/agentauth/challenge"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agentauth:challenge:"

// Store is a Redis-backed challenge.Store.
type Store struct {
	client *redis.Client
}

// New wraps an existing *redis.Client. The caller owns the client's
// lifecycle; Dispose does not close it.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

type record struct {
	DID  string `json:"did"`
	Used bool   `json:"used"`
}

func (s *Store) Store(ctx context.Context, ch, did string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	payload, err := json.Marshal(record{DID: did})
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+ch, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redisstore: store: %w", err)
	}
	if !ok {
		return challenge.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ch string, now time.Time) (*challenge.Record, error) {
	raw, err := s.client.Get(ctx, keyPrefix+ch).Result()
	if err == redis.Nil {
		return nil, challenge.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("redisstore: decode: %w", err)
	}

	ttl, err := s.client.TTL(ctx, keyPrefix+ch).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: ttl: %w", err)
	}

	return &challenge.Record{
		Challenge: ch,
		DID:       rec.DID,
		Used:      rec.Used,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (s *Store) MarkUsed(ctx context.Context, ch string) error {
	ttl, err := s.client.TTL(ctx, keyPrefix+ch).Result()
	if err != nil {
		return fmt.Errorf("redisstore: ttl: %w", err)
	}
	if ttl < 0 {
		return challenge.ErrNotFound
	}

	raw, err := s.client.Get(ctx, keyPrefix+ch).Result()
	if err == redis.Nil {
		return challenge.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redisstore: get: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("redisstore: decode: %w", err)
	}
	rec.Used = true

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+ch, payload, ttl).Err()
}

// Cleanup is a no-op: Redis expires keys natively via their TTL. now is
// accepted only to satisfy challenge.Store.
func (s *Store) Cleanup(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Dispose is a no-op: the caller owns the underlying *redis.Client.
func (s *Store) Dispose() {}

var _ challenge.Store = (*Store)(nil)
