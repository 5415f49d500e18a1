package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &Postgres{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS portal_storage (
	scope TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (scope, key)
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure portal_storage schema: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, scope, key string) (string, error) {
	if err := validate(scope, key); err != nil {
		return "", err
	}

	var value string
	const q = `SELECT value FROM portal_storage WHERE scope = $1 AND key = $2`
	if err := s.db.QueryRowContext(ctx, q, scope, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query storage value: %w", err)
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, scope, key, value string) error {
	if err := validate(scope, key); err != nil {
		return err
	}

	const q = `
INSERT INTO portal_storage (scope, key, value, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (scope, key) DO UPDATE
SET value = EXCLUDED.value,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, scope, key, value); err != nil {
		return fmt.Errorf("upsert storage value: %w", err)
	}
	return nil
}

func (s *Postgres) Remove(ctx context.Context, scope, key string) error {
	if err := validate(scope, key); err != nil {
		return err
	}

	const q = `DELETE FROM portal_storage WHERE scope = $1 AND key = $2`
	if _, err := s.db.ExecContext(ctx, q, scope, key); err != nil {
		return fmt.Errorf("delete storage value: %w", err)
	}
	return nil
}
