package guard

import "enarm/portal/internal/session"

// Check is the predicate a guard applies to the session state.
type Check struct {
	Name   string
	Allows func(session.Snapshot) bool
}

// Anyone admits every navigation.
var Anyone = Check{
	Name:   "anyone",
	Allows: func(session.Snapshot) bool { return true },
}

// Authenticated admits any browser context holding a token.
var Authenticated = Check{
	Name:   "authenticated",
	Allows: session.Snapshot.Authenticated,
}

// RequireRole admits only an authenticated context with exactly role.
func RequireRole(role session.Role) Check {
	return Check{
		Name: "role:" + role.String(),
		Allows: func(s session.Snapshot) bool {
			return s.HasRole(role)
		},
	}
}

func (c Check) allows(s session.Snapshot) bool {
	if c.Allows == nil {
		return false
	}
	return c.Allows(s)
}
