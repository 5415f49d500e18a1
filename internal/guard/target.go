package guard

import (
	"fmt"
	"net/http"
)

// Target is what an allowed navigation renders: a Component constructed with
// typed props per navigation, or a prebuilt Element.
type Target interface {
	targetName() string
}

// RenderFunc renders a screen for one navigation.
type RenderFunc func(w http.ResponseWriter, r *http.Request, props Props)

type Component struct {
	Name   string
	Render RenderFunc
}

type Element struct {
	Name    string
	Handler http.Handler
}

func (c Component) targetName() string { return c.Name }
func (e Element) targetName() string   { return e.Name }

// TargetName returns the screen name carried by t, or "" for nil.
func TargetName(t Target) string {
	if t == nil {
		return ""
	}
	return t.targetName()
}

// Dispatch hands the request to t. Component receives the forwarded props;
// Element ignores them.
func Dispatch(t Target, w http.ResponseWriter, r *http.Request, props Props) error {
	switch v := t.(type) {
	case Component:
		if v.Render == nil {
			return fmt.Errorf("component %q has no renderer", v.Name)
		}
		v.Render(w, r, props)
		return nil
	case Element:
		if v.Handler == nil {
			return fmt.Errorf("element %q has no handler", v.Name)
		}
		v.Handler.ServeHTTP(w, r)
		return nil
	case nil:
		return fmt.Errorf("no render target")
	default:
		return fmt.Errorf("unsupported render target %T", t)
	}
}
