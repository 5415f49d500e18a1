package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"enarm/portal/internal/authapi"
	"enarm/portal/internal/session"
)

const (
	uniqueViolation = pq.ErrorCode("23505")
	emailConstraint = "portal_users_email_key"
)

type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(ctx context.Context, db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresUserStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresUserStore) ensureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS portal_users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	provider_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure portal_users schema: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, COALESCE(email, ''), name, password_hash, role, provider, provider_id, created_at FROM portal_users`

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}
	return s.scanOne(s.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, email))
}

func (s *PostgresUserStore) GetByProvider(ctx context.Context, provider authapi.Provider, providerID string) (User, error) {
	if provider == "" || providerID == "" {
		return User{}, ErrUserNotFound
	}
	return s.scanOne(s.db.QueryRowContext(ctx, selectUser+` WHERE provider = $1 AND provider_id = $2`, string(provider), providerID))
}

func (s *PostgresUserStore) scanOne(row *sql.Row) (User, error) {
	var u User
	var role, provider string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &provider, &u.ProviderID, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query portal user: %w", err)
	}
	parsed, err := session.ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("decode role: %w", err)
	}
	u.Role = parsed
	u.Provider = authapi.Provider(provider)
	return u, nil
}

func (s *PostgresUserStore) Put(ctx context.Context, user User) error {
	if strings.TrimSpace(user.ID) == "" || user.Role == session.RoleNone {
		return fmt.Errorf("id and role are required")
	}

	const q = `
INSERT INTO portal_users (id, email, name, password_hash, role, provider, provider_id, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NOW())
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
	name = EXCLUDED.name,
	password_hash = EXCLUDED.password_hash,
	role = EXCLUDED.role,
	provider = EXCLUDED.provider,
	provider_id = EXCLUDED.provider_id,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q,
		user.ID, normalizeEmail(user.Email), user.Name, user.PasswordHash,
		string(user.Role), string(user.Provider), user.ProviderID,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == emailConstraint {
			return ErrEmailTaken
		}
		return fmt.Errorf("upsert portal user: %w", err)
	}
	return nil
}
