package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"enarm/portal/internal/authapi"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByProvider(ctx context.Context, provider authapi.Provider, providerID string) (User, error)
	// Put inserts or replaces user by ID. It fails with ErrEmailTaken when
	// another user already owns the e-mail.
	Put(ctx context.Context, user User) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// userIndex is shared by the in-process stores.
type userIndex map[string]User

func (idx userIndex) byEmail(email string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}
	for _, u := range idx {
		if normalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (idx userIndex) byProvider(provider authapi.Provider, providerID string) (User, error) {
	if provider == "" || providerID == "" {
		return User{}, ErrUserNotFound
	}
	for _, u := range idx {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// checkEmail must run under the same lock as the write it guards.
func (idx userIndex) checkEmail(user User) error {
	email := normalizeEmail(user.Email)
	if email == "" {
		return nil
	}
	for id, u := range idx {
		if id != user.ID && normalizeEmail(u.Email) == email {
			return ErrEmailTaken
		}
	}
	return nil
}

type InMemoryUserStore struct {
	mu    sync.RWMutex
	users userIndex
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(userIndex)}
}

func (s *InMemoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.byEmail(email)
}

func (s *InMemoryUserStore) GetByProvider(_ context.Context, provider authapi.Provider, providerID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.byProvider(provider, providerID)
}

func (s *InMemoryUserStore) Put(_ context.Context, user User) error {
	if user.ID == "" {
		return errors.New("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.users.checkEmail(user); err != nil {
		return err
	}
	s.users[user.ID] = user
	return nil
}
