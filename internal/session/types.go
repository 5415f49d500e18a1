package session

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleNone   Role = ""
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts the role names issued by the authentication service.
// Anything else, including the empty string, yields RoleNone.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePlayer:
		return RolePlayer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleNone:
		return RoleNone, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// PlayerInfo is a denormalized copy of the player's profile. It is a cache and
// never an authentication signal on its own.
type PlayerInfo struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Provider    string            `json:"provider,omitempty"`
	ProviderID  string            `json:"provider_id,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Snapshot is the authentication state read at one instant.
type Snapshot struct {
	Token string
	Role  Role
}

func (s Snapshot) Authenticated() bool {
	return s.Token != ""
}

func (s Snapshot) HasRole(r Role) bool {
	return s.Authenticated() && r != RoleNone && s.Role == r
}

type record struct {
	Token string `json:"token"`
	Role  Role   `json:"role,omitempty"`
}
