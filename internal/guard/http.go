package guard

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"enarm/portal/internal/session"
)

// Observer receives every decision made by an HTTP guard.
type Observer interface {
	ObserveDecision(guard, target string, allowed bool)
}

type handlerOptions struct {
	log      *slog.Logger
	observer Observer
	params   func(*http.Request) map[string]string
}

type Option func(*handlerOptions)

func WithLogger(l *slog.Logger) Option {
	return func(o *handlerOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *handlerOptions) { o.observer = obs }
}

// WithParams overrides how route parameters are read from a request.
func WithParams(fn func(*http.Request) map[string]string) Option {
	return func(o *handlerOptions) {
		if fn != nil {
			o.params = fn
		}
	}
}

// Handler puts g in front of target. The session store is taken from the
// request context; a request without one is treated as unauthenticated.
func Handler(g Guard, target Target, opts ...Option) http.Handler {
	o := handlerOptions{
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		params: ChiParams,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		store := session.FromContext(ctx)
		req := Request{
			Location: FromURL(r.URL),
			Params:   o.params(r),
			From:     resumeFrom(r),
			Target:   target,
		}

		decision := g.Evaluate(store.Snapshot(ctx), req)
		if o.observer != nil {
			o.observer.ObserveDecision(g.Name, TargetName(target), decision.Allowed())
		}

		switch d := decision.(type) {
		case Allow:
			if err := Dispatch(d.Target, w, r, d.Props); err != nil {
				o.log.ErrorContext(ctx, "render target failed", "guard", g.Name, "path", req.Location.Pathname, "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		case Deny:
			if store != nil {
				if payload, err := EncodeIntent(d.Resume); err == nil {
					if err := store.SaveIntent(ctx, payload); err != nil {
						o.log.WarnContext(ctx, "navigation intent not saved", "guard", g.Name, "error", err)
					}
				}
			}
			o.log.DebugContext(ctx, "navigation denied", "guard", g.Name, "path", req.Location.Pathname, "redirect", d.RedirectTo)
			http.Redirect(w, r, d.RedirectTo, http.StatusFound)
		}
	})
}

// ChiParams returns the URL parameters matched by the chi router.
func ChiParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return nil
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}

func resumeFrom(r *http.Request) *Location {
	raw := r.URL.Query().Get("from")
	if raw == "" {
		return nil
	}
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil
	}
	return &loc
}
