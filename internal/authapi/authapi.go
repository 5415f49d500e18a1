package authapi

import (
	"context"
	"errors"
	"fmt"

	"enarm/portal/internal/session"
)

var (
	// ErrUnavailable marks failures to reach the authentication service.
	ErrUnavailable = errors.New("authentication service unavailable")
	ErrMalformed   = errors.New("malformed authentication response")
)

type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

type Credentials struct {
	Email    string
	Password string
	// Name is only used when creating a player.
	Name string
}

// SocialIdentity is what a social provider told the browser about the player.
type SocialIdentity struct {
	Provider   Provider
	ProviderID string
	Email      string
	Name       string
	IDToken    string
}

// Result is a successful authentication.
type Result struct {
	Token string
	Role  session.Role
	ID    string
	Name  string
	Email string
}

// Authenticator issues session tokens in exchange for credentials.
type Authenticator interface {
	Login(ctx context.Context, c Credentials) (Result, error)
	LoginPlayer(ctx context.Context, c Credentials) (Result, error)
	CreatePlayer(ctx context.Context, c Credentials) (Result, error)
	SocialLogin(ctx context.Context, id SocialIdentity) (Result, error)
}

// Error is a rejection by the authentication service. Message is meant for
// the person who submitted the credentials and may be empty.
type Error struct {
	Status  int
	Message string
	// Err is the underlying cause when the rejection was produced locally.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("authentication rejected (status %d): %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("authentication rejected (status %d): %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("authentication rejected (status %d)", e.Status)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected returns a rejection with the given user-facing message.
func Rejected(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}
