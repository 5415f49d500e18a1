package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"enarm/portal/internal/storage"
)

const (
	keySession = "session"
	keyPlayer  = "player"
	keyIntent  = "intent"
)

var ErrEmptyToken = errors.New("session token must not be empty")

// Store is the only read/write path to the authentication state of one browser
// context. Reads never fail: anything missing or unreadable is reported as
// unauthenticated.
type Store struct {
	backend storage.Storage
	scope   string
	log     *slog.Logger
}

func NewStore(backend storage.Storage, scope string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{backend: backend, scope: scope, log: logger}
}

func (s *Store) Scope() string {
	return s.scope
}

// Authenticate replaces any previous session with token and role. Both are
// written as one value so a reader never observes one without the other.
func (s *Store) Authenticate(ctx context.Context, token string, role Role) error {
	if token == "" {
		return ErrEmptyToken
	}
	b, err := json.Marshal(record{Token: token, Role: role})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	// The previous identity's profile must not outlive its token.
	if err := s.backend.Remove(ctx, s.scope, keyPlayer); err != nil {
		return fmt.Errorf("clear player info: %w", err)
	}
	if err := s.backend.Set(ctx, s.scope, keySession, string(b)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Deauthenticate clears the token, the role and the cached profile.
func (s *Store) Deauthenticate(ctx context.Context) error {
	if err := s.backend.Remove(ctx, s.scope, keySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if err := s.backend.Remove(ctx, s.scope, keyPlayer); err != nil {
		return fmt.Errorf("clear player info: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) Snapshot {
	if s == nil || s.backend == nil {
		return Snapshot{}
	}
	raw, err := s.backend.Get(ctx, s.scope, keySession)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.DebugContext(ctx, "session unreadable, treating as absent", "scope", s.scope, "error", err)
		}
		return Snapshot{}
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.DebugContext(ctx, "session corrupted, treating as absent", "scope", s.scope, "error", err)
		return Snapshot{}
	}
	if rec.Token == "" {
		return Snapshot{}
	}
	role, err := ParseRole(string(rec.Role))
	if err != nil {
		s.log.DebugContext(ctx, "session role invalid, dropping role", "scope", s.scope, "error", err)
	}
	return Snapshot{Token: rec.Token, Role: role}
}

func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.Snapshot(ctx).Authenticated()
}

func (s *Store) IsAuthorized(ctx context.Context, required Role) bool {
	return s.Snapshot(ctx).HasRole(required)
}

func (s *Store) Token(ctx context.Context) (string, bool) {
	snap := s.Snapshot(ctx)
	return snap.Token, snap.Authenticated()
}

func (s *Store) Role(ctx context.Context) (Role, bool) {
	snap := s.Snapshot(ctx)
	if !snap.Authenticated() || snap.Role == RoleNone {
		return RoleNone, false
	}
	return snap.Role, true
}

func (s *Store) SavePlayerInfo(ctx context.Context, info PlayerInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode player info: %w", err)
	}
	if err := s.backend.Set(ctx, s.scope, keyPlayer, string(b)); err != nil {
		return fmt.Errorf("store player info: %w", err)
	}
	return nil
}

// PlayerInfo returns the cached profile, but only alongside a present token.
func (s *Store) PlayerInfo(ctx context.Context) (PlayerInfo, bool) {
	if !s.IsAuthenticated(ctx) {
		return PlayerInfo{}, false
	}
	raw, err := s.backend.Get(ctx, s.scope, keyPlayer)
	if err != nil {
		return PlayerInfo{}, false
	}
	var info PlayerInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.log.DebugContext(ctx, "player info corrupted", "scope", s.scope, "error", err)
		return PlayerInfo{}, false
	}
	return info, true
}

// SaveIntent remembers where the browser context was heading when it was sent
// to a login screen. The payload is opaque to the store.
func (s *Store) SaveIntent(ctx context.Context, payload []byte) error {
	if err := s.backend.Set(ctx, s.scope, keyIntent, string(payload)); err != nil {
		return fmt.Errorf("store navigation intent: %w", err)
	}
	return nil
}

// ConsumeIntent returns the saved intent and discards it. An intent that
// cannot be discarded is not returned, so it is never replayed twice.
func (s *Store) ConsumeIntent(ctx context.Context) ([]byte, bool) {
	raw, err := s.backend.Get(ctx, s.scope, keyIntent)
	if err != nil {
		return nil, false
	}
	if err := s.backend.Remove(ctx, s.scope, keyIntent); err != nil {
		s.log.WarnContext(ctx, "navigation intent not discarded, ignoring it", "scope", s.scope, "error", err)
		return nil, false
	}
	return []byte(raw), true
}

type storeKey struct{}

func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext returns the request's store, or nil when none was attached.
func FromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(storeKey{}).(*Store)
	return s
}
