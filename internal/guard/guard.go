package guard

import (
	"maps"

	"enarm/portal/internal/session"
)

const (
	PlayerLoginPath = "/login"
	AdminLoginPath  = "/admin"
)

// Guard gates a screen behind a session check and names the login screen a
// denied navigation is sent to.
type Guard struct {
	Name      string
	Check     Check
	LoginPath string
}

var (
	Public = Guard{Name: "public", Check: Anyone}
	Player = Guard{Name: "player", Check: Authenticated, LoginPath: PlayerLoginPath}
	Admin  = Guard{Name: "admin", Check: RequireRole(session.RoleAdmin), LoginPath: AdminLoginPath}
)

// ByName returns one of the predefined guards.
func ByName(name string) (Guard, bool) {
	switch name {
	case Public.Name:
		return Public, true
	case Player.Name:
		return Player, true
	case Admin.Name:
		return Admin, true
	default:
		return Guard{}, false
	}
}

// Request is one navigation as seen by a guard.
type Request struct {
	Location Location
	Params   map[string]string
	// From is the resume state the navigation arrived with, if any.
	From   *Location
	Target Target
}

// Evaluate decides a navigation from a snapshot of the session. It reads
// nothing else, so equal inputs always give equal decisions.
func (g Guard) Evaluate(snap session.Snapshot, req Request) Decision {
	if !g.Check.allows(snap) {
		loginPath := g.LoginPath
		if loginPath == "" {
			loginPath = PlayerLoginPath
		}
		return Deny{RedirectTo: loginPath, Resume: ResumeState{LoginPath: loginPath, From: req.Location}}
	}

	props := Props{Params: maps.Clone(req.Params)}
	if req.From != nil {
		from := *req.From
		props.From = &from
	}
	return Allow{Target: req.Target, Props: props}
}
