package routes

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"enarm/portal/internal/guard"
)

//go:embed routes.yaml
var defaultManifest []byte

type Kind string

const (
	KindScreen   Kind = "screen"
	KindRedirect Kind = "redirect"
	KindLogout   Kind = "logout"
)

type Route struct {
	Path     string `yaml:"path" json:"path"`
	Screen   string `yaml:"screen,omitempty" json:"screen,omitempty"`
	Guard    string `yaml:"guard,omitempty" json:"guard,omitempty"`
	Redirect string `yaml:"redirect,omitempty" json:"redirect,omitempty"`
	// Logout names the session kind the route signs out of: player or admin.
	Logout string `yaml:"logout,omitempty" json:"logout,omitempty"`
}

func (r Route) Kind() Kind {
	switch {
	case r.Redirect != "":
		return KindRedirect
	case r.Logout != "":
		return KindLogout
	default:
		return KindScreen
	}
}

// Table is the route manifest. Paths use chi patterns.
type Table struct {
	Fallback string  `yaml:"fallback" json:"fallback"`
	Routes   []Route `yaml:"routes" json:"routes"`
}

// Default returns the built-in route table.
func Default() (Table, error) {
	return Parse(defaultManifest)
}

// Load reads a manifest from path, or the built-in one when path is empty.
func Load(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read route manifest: %w", err)
	}
	t, err := Parse(b)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func Parse(b []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Table{}, fmt.Errorf("decode route manifest: %w", err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

func (t *Table) applyDefaults() {
	if t.Fallback == "" {
		t.Fallback = "/"
	}
	for i := range t.Routes {
		t.Routes[i].Path = strings.TrimSpace(t.Routes[i].Path)
	}
}

func (t Table) Validate() error {
	var errs []error
	if _, err := guard.ParseLocation(t.Fallback); err != nil {
		errs = append(errs, fmt.Errorf("fallback: %w", err))
	}
	if len(t.Routes) == 0 {
		errs = append(errs, errors.New("route manifest has no routes"))
	}

	seen := make(map[string]struct{}, len(t.Routes))
	for i, r := range t.Routes {
		where := fmt.Sprintf("route %d (%s)", i, r.Path)
		if !strings.HasPrefix(r.Path, "/") {
			errs = append(errs, fmt.Errorf("%s: path must start with /", where))
		}
		if _, dup := seen[r.Path]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate path", where))
		}
		seen[r.Path] = struct{}{}

		set := 0
		for _, v := range []string{r.Screen, r.Redirect, r.Logout} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			errs = append(errs, fmt.Errorf("%s: exactly one of screen, redirect or logout is required", where))
			continue
		}

		switch r.Kind() {
		case KindScreen:
			// A screen without a guard would be public by accident.
			if _, ok := guard.ByName(r.Guard); !ok {
				errs = append(errs, fmt.Errorf("%s: unknown guard %q", where, r.Guard))
			}
		case KindRedirect:
			if _, err := guard.ParseLocation(r.Redirect); err != nil {
				errs = append(errs, fmt.Errorf("%s: redirect: %w", where, err))
			}
		case KindLogout:
			if r.Logout != "player" && r.Logout != "admin" {
				errs = append(errs, fmt.Errorf("%s: logout must be player or admin", where))
			}
		}
	}
	return errors.Join(errs...)
}

// Match finds the route for a concrete request path and the parameters it
// binds.
func (t Table) Match(path string) (Route, map[string]string, bool) {
	for _, r := range t.Routes {
		if params, ok := matchPattern(r.Path, path); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	ps := splitPath(pattern)
	xs := splitPath(path)
	if len(ps) != len(xs) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range ps {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if xs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[strings.Trim(seg, "{}")] = xs[i]
			continue
		}
		if seg != xs[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
