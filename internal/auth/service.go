package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"enarm/portal/internal/authapi"
	"enarm/portal/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("weak password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
	tokenBytes        = 32
)

// Service is a local stand-in for the remote authentication API. It issues
// opaque tokens and never tracks them afterwards.
type Service struct {
	users   UserStore
	cost    int
	nowFunc func() time.Time
}

type ServiceConfig struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

var _ authapi.Authenticator = (*Service)(nil)

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &Service{
		users:   userStore,
		cost:    cost,
		nowFunc: time.Now,
	}, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) VerifyPassword(password, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// Login admits administrators only.
func (s *Service) Login(ctx context.Context, c authapi.Credentials) (authapi.Result, error) {
	return s.login(ctx, c, session.RoleAdmin)
}

func (s *Service) LoginPlayer(ctx context.Context, c authapi.Credentials) (authapi.Result, error) {
	return s.login(ctx, c, session.RolePlayer)
}

func (s *Service) login(ctx context.Context, c authapi.Credentials, role session.Role) (authapi.Result, error) {
	u, err := s.users.GetByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return authapi.Result{}, reject(http.StatusUnauthorized, ErrInvalidCredentials)
		}
		return authapi.Result{}, err
	}
	if u.Role != role || !s.VerifyPassword(c.Password, u.PasswordHash) {
		return authapi.Result{}, reject(http.StatusUnauthorized, ErrInvalidCredentials)
	}
	return s.issue(u)
}

func (s *Service) CreatePlayer(ctx context.Context, c authapi.Credentials) (authapi.Result, error) {
	email := normalizeEmail(c.Email)
	if !validEmail(email) {
		return authapi.Result{}, rejectMessage(http.StatusUnprocessableEntity, "Correo inválido", ErrInvalidEmail)
	}
	if err := validatePasswordPolicy(c.Password); err != nil {
		return authapi.Result{}, rejectMessage(http.StatusUnprocessableEntity,
			fmt.Sprintf("La contraseña debe tener entre %d y %d caracteres", minPasswordLength, maxPasswordLength), err)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return authapi.Result{}, rejectMessage(http.StatusUnprocessableEntity, "El correo ya está registrado", ErrEmailTaken)
	case !errors.Is(err, ErrUserNotFound):
		return authapi.Result{}, err
	}

	hash, err := s.HashPassword(c.Password)
	if err != nil {
		return authapi.Result{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(c.Name),
		PasswordHash: hash,
		Role:         session.RolePlayer,
		CreatedAt:    s.nowFunc().UTC(),
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return authapi.Result{}, rejectMessage(http.StatusUnprocessableEntity, "El correo ya está registrado", ErrEmailTaken)
		}
		return authapi.Result{}, fmt.Errorf("store player: %w", err)
	}
	return s.issue(u)
}

// SocialLogin signs in the player linked to the provider identity, creating
// the player on first use.
func (s *Service) SocialLogin(ctx context.Context, id authapi.SocialIdentity) (authapi.Result, error) {
	if id.Provider != authapi.ProviderGoogle && id.Provider != authapi.ProviderFacebook {
		return authapi.Result{}, reject(http.StatusBadRequest, fmt.Errorf("unsupported social provider %q", id.Provider))
	}
	if strings.TrimSpace(id.ProviderID) == "" {
		return authapi.Result{}, reject(http.StatusBadRequest, errors.New("provider id is required"))
	}

	u, err := s.users.GetByProvider(ctx, id.Provider, id.ProviderID)
	switch {
	case err == nil:
		if id.Name != "" && id.Name != u.Name {
			u.Name = id.Name
			if err := s.users.Put(ctx, u); err != nil {
				return authapi.Result{}, fmt.Errorf("update player: %w", err)
			}
		}
		return s.issue(u)
	case !errors.Is(err, ErrUserNotFound):
		return authapi.Result{}, err
	}

	email := normalizeEmail(id.Email)
	if !validEmail(email) {
		email = ""
	}
	if email != "" {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return authapi.Result{}, rejectMessage(http.StatusConflict, "El correo ya está registrado", ErrEmailTaken)
		}
	}
	u = User{
		ID:         uuid.NewString(),
		Email:      email,
		Name:       strings.TrimSpace(id.Name),
		Role:       session.RolePlayer,
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		CreatedAt:  s.nowFunc().UTC(),
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return authapi.Result{}, rejectMessage(http.StatusConflict, "El correo ya está registrado", ErrEmailTaken)
		}
		return authapi.Result{}, fmt.Errorf("store player: %w", err)
	}
	return s.issue(u)
}

// EnsureAdmin creates the administrator account if no user owns email yet.
// An existing account is left alone.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (bool, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return false, ErrInvalidEmail
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return false, err
	}
	if err := validatePasswordPolicy(password); err != nil {
		return false, err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return false, err
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         session.RoleAdmin,
		CreatedAt:    s.nowFunc().UTC(),
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, fmt.Errorf("store admin: %w", err)
	}
	return true, nil
}

func (s *Service) issue(u User) (authapi.Result, error) {
	token, err := generateToken(tokenBytes)
	if err != nil {
		return authapi.Result{}, fmt.Errorf("generate token: %w", err)
	}
	return u.result(token), nil
}

func reject(status int, cause error) *authapi.Error {
	return &authapi.Error{Status: status, Err: cause}
}

func rejectMessage(status int, msg string, cause error) *authapi.Error {
	return &authapi.Error{Status: status, Message: msg, Err: cause}
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func validatePasswordPolicy(password string) error {
	if strings.TrimSpace(password) != password {
		return ErrWeakPassword
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func generateToken(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
