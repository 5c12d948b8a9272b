// Package pgstore backs acl.Store with PostgreSQL, adapted from the
// teacher's pkg/storage/postgres DID store CRUD pattern.
package pgstore

import (
	"context"
	"fmt"

	"github.com/didauth/agentauth/acl"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a PostgreSQL-backed acl.Store.
//
// Expected schema:
//
//	CREATE TABLE acl_entries (
//	    did               TEXT PRIMARY KEY,
//	    status            TEXT NOT NULL,
//	    manifest_sequence BIGINT NOT NULL DEFAULT 0,
//	    registered_at     TIMESTAMPTZ NOT NULL,
//	    updated_at        TIMESTAMPTZ NOT NULL,
//	    reason            TEXT
//	);
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, did string) (*acl.Entry, error) {
	var e acl.Entry
	err := s.pool.QueryRow(ctx,
		`SELECT did, status, manifest_sequence, registered_at, updated_at, COALESCE(reason, '')
		 FROM acl_entries WHERE did = $1`, did,
	).Scan(&e.DID, &e.Status, &e.ManifestSequence, &e.RegisteredAt, &e.UpdatedAt, &e.Reason)
	if err == pgx.ErrNoRows {
		return nil, acl.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get: %w", err)
	}
	return &e, nil
}

func (s *Store) Set(ctx context.Context, e *acl.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO acl_entries (did, status, manifest_sequence, registered_at, updated_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (did) DO UPDATE SET
			status = EXCLUDED.status,
			manifest_sequence = EXCLUDED.manifest_sequence,
			updated_at = EXCLUDED.updated_at,
			reason = EXCLUDED.reason`,
		e.DID, e.Status, e.ManifestSequence, e.RegisteredAt, e.UpdatedAt, e.Reason)
	if err != nil {
		return fmt.Errorf("pgstore: set: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, status acl.Status) ([]*acl.Entry, error) {
	query := `SELECT did, status, manifest_sequence, registered_at, updated_at, COALESCE(reason, '') FROM acl_entries`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
	}
	defer rows.Close()

	var out []*acl.Entry
	for rows.Next() {
		var e acl.Entry
		if err := rows.Scan(&e.DID, &e.Status, &e.ManifestSequence, &e.RegisteredAt, &e.UpdatedAt, &e.Reason); err != nil {
			return nil, fmt.Errorf("pgstore: scan: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, did string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM acl_entries WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("pgstore: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return acl.ErrNotFound
	}
	return nil
}

func (s *Store) GetMaxSequence(ctx context.Context, did string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT manifest_sequence FROM acl_entries WHERE did = $1`, did).Scan(&seq)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pgstore: get max sequence: %w", err)
	}
	return seq, nil
}

// UpdateSequence performs the monotonic bump inside a transaction so
// that concurrent callers racing on the same DID cannot both succeed
// with a stale value, mirroring the teacher's transactional nonce-store
// pattern.
func (s *Store) UpdateSequence(ctx context.Context, did string, seq int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE acl_entries SET manifest_sequence = $1 WHERE did = $2 AND manifest_sequence < $1`,
		seq, did)
	if err != nil {
		return fmt.Errorf("pgstore: update sequence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM acl_entries WHERE did = $1)`, did).Scan(&exists); err != nil {
			return fmt.Errorf("pgstore: exists check: %w", err)
		}
		if !exists {
			return acl.ErrNotFound
		}
		return acl.ErrSequenceRollback
	}

	return tx.Commit(ctx)
}

var _ acl.Store = (*Store)(nil)
