package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS agent_kv (
	owner      TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      BYTEA       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, key)
)`

// querier is the part of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// KVStore keeps agent state in a shared Postgres table, one row per (owner, key).
// Used by kiosk deployments where several devices serve the same driver.
type KVStore struct {
	db    querier
	owner string
}

// NewKVStore ensures the table exists and scopes all keys to owner.
func NewKVStore(ctx context.Context, db querier, owner string) (*KVStore, error) {
	if _, err := db.Exec(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("postgres migrate agent_kv: %w", err)
	}
	return &KVStore{db: db, owner: owner}, nil
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM agent_kv WHERE owner = $1 AND key = $2`, s.owner, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts value under key.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO agent_kv (owner, key, value, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (owner, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.owner, key, value,
	)
	if err != nil {
		return fmt.Errorf("postgres put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM agent_kv WHERE owner = $1 AND key = $2`, s.owner, key); err != nil {
		return fmt.Errorf("postgres delete %q: %w", key, err)
	}
	return nil
}
