package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enarm/portal/internal/storage"
)

type failingStorage struct {
	storage.Storage
	getErr    error
	setErr    error
	removeErr error
}

func (f failingStorage) Get(ctx context.Context, scope, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.Storage.Get(ctx, scope, key)
}

func (f failingStorage) Set(ctx context.Context, scope, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Storage.Set(ctx, scope, key, value)
}

func (f failingStorage) Remove(ctx context.Context, scope, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Storage.Remove(ctx, scope, key)
}

func newTestStore() (*Store, *storage.Memory) {
	backend := storage.NewMemory()
	return NewStore(backend, "ctx-1", nil), backend
}

func TestAbsentTokenIsNeverAuthenticated(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore()

	assert.False(t, s.IsAuthenticated(ctx))

	require.NoError(t, s.SavePlayerInfo(ctx, PlayerInfo{ID: "7", Name: "Ana"}))
	require.NoError(t, backend.Set(ctx, "ctx-1", keySession, `{"token":"","role":"admin"}`))

	assert.False(t, s.IsAuthenticated(ctx))
	assert.False(t, s.IsAuthorized(ctx, RoleAdmin))
	_, ok := s.PlayerInfo(ctx)
	assert.False(t, ok, "profile cache is not trusted without a token")
	_, ok = s.Role(ctx)
	assert.False(t, ok)
}

func TestAuthenticateThenDeauthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Authenticate(ctx, "abc", RoleAdmin))
	require.NoError(t, s.SavePlayerInfo(ctx, PlayerInfo{ID: "7"}))
	require.NoError(t, s.Deauthenticate(ctx))

	assert.False(t, s.IsAuthenticated(ctx))
	_, ok := s.Token(ctx)
	assert.False(t, ok)
	_, ok = s.PlayerInfo(ctx)
	assert.False(t, ok)
}

func TestDeauthenticateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Authenticate(ctx, "abc", RolePlayer))
	require.NoError(t, s.Deauthenticate(ctx))
	once := s.Snapshot(ctx)

	require.NoError(t, s.Deauthenticate(ctx))
	assert.Equal(t, once, s.Snapshot(ctx))
	assert.Equal(t, Snapshot{}, once)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	ctx := context.Background()
	roles := []Role{RolePlayer, RoleAdmin}

	for _, role := range roles {
		t.Run(role.String(), func(t *testing.T) {
			s, _ := newTestStore()
			require.NoError(t, s.Authenticate(ctx, "tok-"+string(role), role))

			token, ok := s.Token(ctx)
			require.True(t, ok)
			assert.Equal(t, "tok-"+string(role), token)
			assert.True(t, s.IsAuthorized(ctx, role))

			for _, other := range roles {
				if other != role {
					assert.False(t, s.IsAuthorized(ctx, other))
				}
			}
			assert.False(t, s.IsAuthorized(ctx, RoleNone))
		})
	}
}

func TestAuthenticateOverwritesPriorSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Authenticate(ctx, "first", RolePlayer))
	require.NoError(t, s.SavePlayerInfo(ctx, PlayerInfo{ID: "1", Name: "Ana", Email: "ana@x.mx"}))
	require.NoError(t, s.Authenticate(ctx, "second", RoleNone))

	snap := s.Snapshot(ctx)
	assert.Equal(t, "second", snap.Token)
	assert.Equal(t, RoleNone, snap.Role)
	assert.True(t, s.IsAuthenticated(ctx))
	assert.False(t, s.IsAuthorized(ctx, RoleAdmin))

	_, ok := s.PlayerInfo(ctx)
	assert.False(t, ok, "the previous identity's profile must not survive a new login")
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	s, _ := newTestStore()
	err := s.Authenticate(context.Background(), "", RoleAdmin)
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestCorruptedSessionFailsClosed(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		raw   string
		authN bool
		admin bool
	}{
		{name: "not json", raw: "{token", authN: false},
		{name: "wrong shape", raw: `["abc"]`, authN: false},
		{name: "unknown role keeps token but no role", raw: `{"token":"abc","role":"root"}`, authN: true, admin: false},
		{name: "valid", raw: `{"token":"abc","role":"admin"}`, authN: true, admin: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, backend := newTestStore()
			require.NoError(t, backend.Set(ctx, "ctx-1", keySession, tt.raw))
			assert.Equal(t, tt.authN, s.IsAuthenticated(ctx))
			assert.Equal(t, tt.admin, s.IsAuthorized(ctx, RoleAdmin))
		})
	}
}

func TestUnreadableStorageFailsClosed(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, backend.Set(ctx, "ctx-1", keySession, `{"token":"abc","role":"admin"}`))

	s := NewStore(failingStorage{Storage: backend, getErr: errors.New("connection refused")}, "ctx-1", nil)
	assert.False(t, s.IsAuthenticated(ctx))
	assert.False(t, s.IsAuthorized(ctx, RoleAdmin))
}

func TestAuthenticateWriteFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := NewStore(failingStorage{Storage: backend, setErr: errors.New("read-only")}, "ctx-1", nil)

	require.Error(t, s.Authenticate(ctx, "abc", RoleAdmin))
	assert.False(t, s.IsAuthenticated(ctx))
}

func TestIntentNotReturnedWhenItCannotBeDiscarded(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, NewStore(backend, "ctx-1", nil).SaveIntent(ctx, []byte(`{"from":{"pathname":"/profile"}}`)))

	s := NewStore(failingStorage{Storage: backend, removeErr: errors.New("read-only")}, "ctx-1", nil)
	_, ok := s.ConsumeIntent(ctx)
	assert.False(t, ok)
	_, ok = s.ConsumeIntent(ctx)
	assert.False(t, ok)
}

func TestPlayerInfoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	info := PlayerInfo{ID: "42", Name: "Ana", Email: "ana@example.com", Provider: "google", Preferences: map[string]string{"theme": "dark"}}

	require.NoError(t, s.Authenticate(ctx, "abc", RolePlayer))
	require.NoError(t, s.SavePlayerInfo(ctx, info))

	got, ok := s.PlayerInfo(ctx)
	require.True(t, ok)
	assert.Equal(t, info, got)
}

func TestIntentIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, ok := s.ConsumeIntent(ctx)
	assert.False(t, ok)

	require.NoError(t, s.SaveIntent(ctx, []byte(`{"pathname":"/dashboard/casos/2"}`)))
	got, ok := s.ConsumeIntent(ctx)
	require.True(t, ok)
	assert.JSONEq(t, `{"pathname":"/dashboard/casos/2"}`, string(got))

	_, ok = s.ConsumeIntent(ctx)
	assert.False(t, ok)
}

func TestScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	a := NewStore(backend, "ctx-a", nil)
	b := NewStore(backend, "ctx-b", nil)

	require.NoError(t, a.Authenticate(ctx, "abc", RoleAdmin))
	assert.True(t, a.IsAuthenticated(ctx))
	assert.False(t, b.IsAuthenticated(ctx))
}

func TestNilStoreSnapshotIsEmpty(t *testing.T) {
	var s *Store
	assert.Equal(t, Snapshot{}, s.Snapshot(context.Background()))
	assert.False(t, s.IsAuthenticated(context.Background()))
}

func TestStoreContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	s, _ := newTestStore()
	assert.Same(t, s, FromContext(WithStore(ctx, s)))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}
