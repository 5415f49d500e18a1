package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"enarm/portal/internal/authapi"
	"enarm/portal/internal/guard"
	"enarm/portal/internal/login"
	"enarm/portal/internal/routes"
	"enarm/portal/internal/session"
)

func registerRoutes(r chi.Router, deps Deps, shell *spa, observer guard.Observer, log *slog.Logger) {
	for _, rt := range deps.Routes.Routes {
		switch rt.Kind() {
		case routes.KindScreen:
			g, ok := guard.ByName(rt.Guard)
			if !ok {
				// Unreachable for validated tables; fail closed anyway.
				g = guard.Admin
			}
			h := guard.Handler(g, screenTarget(rt.Screen, shell),
				guard.WithLogger(log),
				guard.WithObserver(observer),
			)
			r.Method(http.MethodGet, rt.Path, h)
			r.Method(http.MethodHead, rt.Path, h)
		case routes.KindRedirect:
			to := rt.Redirect
			r.Get(rt.Path, func(w http.ResponseWriter, req *http.Request) {
				http.Redirect(w, req, to, http.StatusFound)
			})
		case routes.KindLogout:
			h := logoutHandler(deps.Flow, login.Kind(rt.Logout), log)
			r.Get(rt.Path, h)
			r.Post(rt.Path, h)
		}
	}
}

// screenTarget renders the SPA shell when one is deployed, and a JSON screen
// descriptor otherwise.
func screenTarget(name string, shell *spa) guard.Target {
	if shell != nil {
		return guard.Element{Name: name, Handler: http.HandlerFunc(shell.serveIndex)}
	}
	return guard.Component{Name: name, Render: func(w http.ResponseWriter, _ *http.Request, props guard.Props) {
		writeJSON(w, http.StatusOK, map[string]any{
			"screen": name,
			"params": props.Params,
			"from":   props.From,
		})
	}}
}

func sessionView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	snap := store.Snapshot(ctx)

	resp := map[string]any{"authenticated": snap.Authenticated()}
	if snap.Authenticated() {
		resp["token"] = snap.Token
		if snap.Role != session.RoleNone {
			resp["role"] = snap.Role
		}
		if info, ok := store.PlayerInfo(ctx); ok {
			resp["player"] = info
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Signup     bool   `json:"signup"`
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	IDToken    string `json:"id_token"`
}

func registerLoginHandlers(r chi.Router, flow *login.Flow, log *slog.Logger) {
	r.Post(guard.AdminLoginPath, func(w http.ResponseWriter, r *http.Request) {
		submitLogin(w, r, flow, log, guard.AdminLoginPath, func(req loginRequest) (login.Submission, string) {
			if req.Email == "" || req.Password == "" {
				return login.Submission{}, "email and password are required"
			}
			return login.Submission{Kind: login.KindAdmin, Credentials: credentials(req)}, ""
		})
	})
	r.Post(guard.PlayerLoginPath, func(w http.ResponseWriter, r *http.Request) {
		submitLogin(w, r, flow, log, guard.PlayerLoginPath, func(req loginRequest) (login.Submission, string) {
			if req.Email == "" || req.Password == "" {
				return login.Submission{}, "email and password are required"
			}
			kind := login.KindPlayer
			if req.Signup {
				kind = login.KindSignup
			}
			return login.Submission{Kind: kind, Credentials: credentials(req)}, ""
		})
	})
	r.Post(guard.PlayerLoginPath+"/social", func(w http.ResponseWriter, r *http.Request) {
		submitLogin(w, r, flow, log, guard.PlayerLoginPath, func(req loginRequest) (login.Submission, string) {
			if req.Provider == "" || req.ProviderID == "" {
				return login.Submission{}, "provider and provider_id are required"
			}
			return login.Submission{Kind: login.KindSocial, Social: authapi.SocialIdentity{
				Provider:   authapi.Provider(strings.ToLower(req.Provider)),
				ProviderID: req.ProviderID,
				Email:      req.Email,
				Name:       req.Name,
				IDToken:    req.IDToken,
			}}, ""
		})
	})
}

func credentials(req loginRequest) authapi.Credentials {
	return authapi.Credentials{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
	}
}

func submitLogin(w http.ResponseWriter, r *http.Request, flow *login.Flow, log *slog.Logger, loginPath string, build func(loginRequest) (login.Submission, string)) {
	if flow == nil {
		writeError(w, http.StatusServiceUnavailable, "login unavailable")
		return
	}
	req, isForm, err := decodeLogin(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub, problem := build(req)
	if problem != "" {
		if isForm {
			redirectWithError(w, r, loginPath, problem)
			return
		}
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	ctx := r.Context()
	out, err := flow.Submit(ctx, session.FromContext(ctx), sub)
	if err != nil {
		var failure *login.Failure
		switch {
		case errors.Is(err, login.ErrPending):
			writeError(w, http.StatusConflict, "login already in progress")
		case errors.As(err, &failure):
			if isForm {
				redirectWithError(w, r, loginPath, failure.Message)
				return
			}
			status := http.StatusUnauthorized
			if errors.Is(err, authapi.ErrUnavailable) || errors.Is(err, authapi.ErrMalformed) {
				status = http.StatusBadGateway
			}
			writeError(w, status, failure.Message)
		default:
			log.ErrorContext(ctx, "login failed", "kind", sub.Kind, "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	if isForm {
		http.Redirect(w, r, out.Destination, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"destination": out.Destination,
		"role":        out.Role,
		"resumed":     out.Resumed,
		"player":      out.Player,
	})
}

func decodeLogin(r *http.Request) (loginRequest, bool, error) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSONBody(r, &req); err != nil {
			return loginRequest{}, false, err
		}
		return req, false, nil
	}

	if err := r.ParseForm(); err != nil {
		return loginRequest{}, true, err
	}
	signup, _ := strconv.ParseBool(r.PostForm.Get("signup"))
	if r.PostForm.Get("signup") == "on" {
		signup = true
	}
	return loginRequest{
		Email:      r.PostForm.Get("email"),
		Password:   r.PostForm.Get("password"),
		Name:       r.PostForm.Get("name"),
		Signup:     signup,
		Provider:   r.PostForm.Get("provider"),
		ProviderID: r.PostForm.Get("provider_id"),
		IDToken:    r.PostForm.Get("id_token"),
	}, true, nil
}

func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, loginPath, msg string) {
	http.Redirect(w, r, loginPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

func logoutHandler(flow *login.Flow, kind login.Kind, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			writeError(w, http.StatusServiceUnavailable, "logout unavailable")
			return
		}
		ctx := r.Context()
		dest, err := flow.Logout(ctx, session.FromContext(ctx), kind)
		if err != nil {
			log.ErrorContext(ctx, "logout failed", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, map[string]string{"destination": dest})
			return
		}
		http.Redirect(w, r, dest, http.StatusFound)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func notFound(fallback string, shell *spa) http.HandlerFunc {
	if fallback == "" {
		fallback = "/"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if shell != nil && shell.serveAsset(w, r) {
			return
		}
		http.Redirect(w, r, fallback, http.StatusFound)
	}
}

// spa serves a built single-page frontend from disk.
type spa struct {
	dir   string
	index string
	files http.Handler
}

func newSPA(distDir string) *spa {
	distDir = strings.TrimSpace(distDir)
	if distDir == "" {
		return nil
	}
	indexPath := filepath.Join(distDir, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		return nil
	}
	return &spa{dir: distDir, index: indexPath, files: http.FileServer(http.Dir(distDir))}
}

func (s *spa) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.index)
}

// serveAsset serves a static file if one exists at the request path.
func (s *spa) serveAsset(w http.ResponseWriter, r *http.Request) bool {
	cleanPath := path.Clean(r.URL.Path)
	if cleanPath == "." || cleanPath == "/" || cleanPath == "/index.html" {
		return false
	}
	fullPath := filepath.Join(s.dir, strings.TrimPrefix(cleanPath, "/"))
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return false
	}
	s.files.ServeHTTP(w, r)
	return true
}
