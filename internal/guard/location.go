package guard

import (
	"fmt"
	"net/url"
	"strings"
)

// Location is a navigation target inside the application.
type Location struct {
	Pathname string `json:"pathname"`
	Search   string `json:"search,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// ParseLocation accepts a path with optional query and fragment. Absolute
// URLs and scheme-relative paths are rejected.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("location must not be empty")
	}
	if strings.ContainsRune(raw, '\\') {
		return Location{}, fmt.Errorf("location %q contains a backslash", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	if u.Scheme != "" || u.Host != "" || u.User != nil {
		return Location{}, fmt.Errorf("location %q is not local", raw)
	}
	// The escaped form keeps %2F, %3F and %23 inside a segment intact.
	loc := Location{Pathname: u.EscapedPath()}
	if u.RawQuery != "" {
		loc.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		loc.Hash = "#" + u.EscapedFragment()
	}
	if !loc.IsLocal() {
		return Location{}, fmt.Errorf("location %q is not local", raw)
	}
	return loc, nil
}

// FromURL builds the location of an incoming request.
func FromURL(u *url.URL) Location {
	if u == nil {
		return Location{Pathname: "/"}
	}
	loc := Location{Pathname: u.EscapedPath()}
	if loc.Pathname == "" {
		loc.Pathname = "/"
	}
	if u.RawQuery != "" {
		loc.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		loc.Hash = "#" + u.EscapedFragment()
	}
	return loc
}

func (l Location) String() string {
	return l.Pathname + l.Search + l.Hash
}

// IsLocal reports whether redirecting to l keeps the browser on this origin.
func (l Location) IsLocal() bool {
	p := l.Pathname
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.ContainsRune(l.String(), '\\') {
		return false
	}
	if strings.ContainsAny(p, "\r\n\t") {
		return false
	}
	if l.Search != "" && !strings.HasPrefix(l.Search, "?") {
		return false
	}
	if l.Hash != "" && !strings.HasPrefix(l.Hash, "#") {
		return false
	}
	return true
}
