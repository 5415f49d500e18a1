package auth

import (
	"time"

	"enarm/portal/internal/authapi"
	"enarm/portal/internal/session"
)

type User struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	PasswordHash string           `json:"password_hash,omitempty"`
	Role         session.Role     `json:"role"`
	Provider     authapi.Provider `json:"provider,omitempty"`
	ProviderID   string           `json:"provider_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (u User) result(token string) authapi.Result {
	return authapi.Result{
		Token: token,
		Role:  u.Role,
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
