// Package pgstore backs challenge.Store with PostgreSQL, adapted from
// the teacher's pkg/storage/postgres nonce store: a transaction guards
// the insert-if-absent check, and mark_used/cleanup are parameterized
// SQL statements.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/didauth/agentauth/challenge"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a PostgreSQL-backed challenge.Store.
//
// Expected schema:
//
//	CREATE TABLE challenges (
//	    challenge  TEXT PRIMARY KEY,
//	    did        TEXT NOT NULL,
//	    used       BOOLEAN NOT NULL DEFAULT FALSE,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Store(ctx context.Context, ch, did string, expiresAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM challenges WHERE challenge = $1)`, ch).Scan(&exists)
	if err != nil {
		return fmt.Errorf("pgstore: check: %w", err)
	}
	if exists {
		return challenge.ErrAlreadyExists
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO challenges (challenge, did, used, expires_at) VALUES ($1, $2, FALSE, $3)`,
		ch, did, expiresAt)
	if err != nil {
		return fmt.Errorf("pgstore: insert: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, ch string, now time.Time) (*challenge.Record, error) {
	var rec challenge.Record
	err := s.pool.QueryRow(ctx,
		`SELECT challenge, did, used, expires_at FROM challenges WHERE challenge = $1 AND expires_at > $2`,
		ch, now).Scan(&rec.Challenge, &rec.DID, &rec.Used, &rec.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, challenge.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get: %w", err)
	}
	return &rec, nil
}

func (s *Store) MarkUsed(ctx context.Context, ch string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE challenges SET used = TRUE WHERE challenge = $1`, ch)
	if err != nil {
		return fmt.Errorf("pgstore: mark used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return challenge.ErrNotFound
	}
	return nil
}

func (s *Store) Cleanup(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("pgstore: cleanup: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Dispose is a no-op: the caller owns the connection pool's lifecycle.
func (s *Store) Dispose() {}

var _ challenge.Store = (*Store)(nil)
