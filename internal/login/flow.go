package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"enarm/portal/internal/authapi"
	"enarm/portal/internal/guard"
	"enarm/portal/internal/session"
)

type Kind string

const (
	KindAdmin  Kind = "admin"
	KindPlayer Kind = "player"
	KindSignup Kind = "signup"
	KindSocial Kind = "social"
)

const (
	AdminFallback  = "/dashboard"
	PlayerFallback = "/"

	msgAdminRejected  = "Invalid Credentials!"
	msgPlayerRejected = "Credenciales inválidas"
	msgSignupRejected = "Error al registrarse"
	msgUnavailable    = "No se pudo conectar con el servidor. Intenta de nuevo más tarde."
)

// ErrPending is returned while another submission for the same browser
// context has not settled.
var ErrPending = errors.New("a login submission is already in progress")

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAdmin, KindPlayer, KindSignup, KindSocial:
		return k, nil
	default:
		return "", fmt.Errorf("unknown login kind %q", s)
	}
}

// LoginPath is the login screen that submits logins of kind k. A saved
// intent is only resumed by a login on the screen the guard sent it to.
func (k Kind) LoginPath() string {
	if k == KindAdmin {
		return guard.AdminLoginPath
	}
	return guard.PlayerLoginPath
}

// Fallback is where a successful login of kind k lands when no resume
// location was saved.
func (k Kind) Fallback() string {
	if k == KindAdmin {
		return AdminFallback
	}
	return PlayerFallback
}

type Submission struct {
	Kind        Kind
	Credentials authapi.Credentials
	Social      authapi.SocialIdentity
}

func (s Submission) actor() string {
	if s.Kind == KindSocial {
		return string(s.Social.Provider) + ":" + s.Social.ProviderID
	}
	return s.Credentials.Email
}

// Outcome describes a successful login.
type Outcome struct {
	Destination string
	Role        session.Role
	// Resumed is true when Destination came from a saved resume location.
	Resumed bool
	Player  *session.PlayerInfo
}

// Failure is shown to the person who submitted the form. The session is
// left as it was.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type Observer interface {
	ObserveLogin(kind, outcome string)
}

type AuditLogger interface {
	Log(actor, action, target, outcome, detail string) error
}

// Flow runs login submissions against an authenticator and records the
// result in a browser context's session store.
type Flow struct {
	auth     authapi.Authenticator
	log      *slog.Logger
	observer Observer
	audit    AuditLogger

	mu      sync.Mutex
	pending map[string]struct{}
}

type Option func(*Flow)

func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(f *Flow) { f.observer = o }
}

func WithAudit(a AuditLogger) Option {
	return func(f *Flow) { f.audit = a }
}

func NewFlow(auth authapi.Authenticator, opts ...Option) (*Flow, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	f := &Flow{
		auth:    auth,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Submit authenticates sub and, on success, writes the session and picks the
// post-login destination. Errors other than ErrPending are *Failure.
func (f *Flow) Submit(ctx context.Context, store *session.Store, sub Submission) (Outcome, error) {
	if store == nil {
		return Outcome{}, fmt.Errorf("session store is required")
	}
	if !f.begin(store.Scope()) {
		f.observe(sub.Kind, "suppressed")
		return Outcome{}, ErrPending
	}
	defer f.end(store.Scope())

	res, err := f.authenticate(ctx, sub)
	if err != nil {
		failure := f.failure(sub, err)
		f.log.InfoContext(ctx, "login rejected", "kind", sub.Kind, "scope", store.Scope(), "error", err)
		f.observe(sub.Kind, "failure")
		f.auditLogin(ctx, sub, store.Scope(), "failure", failure.Message)
		return Outcome{}, failure
	}

	if err := store.Authenticate(ctx, res.Token, res.Role); err != nil {
		f.log.ErrorContext(ctx, "session not stored", "kind", sub.Kind, "scope", store.Scope(), "error", err)
		f.observe(sub.Kind, "error")
		f.auditLogin(ctx, sub, store.Scope(), "error", err.Error())
		return Outcome{}, &Failure{Message: msgUnavailable, Err: err}
	}

	out := Outcome{Role: res.Role}
	if sub.Kind != KindAdmin {
		info := playerInfo(sub, res)
		if err := store.SavePlayerInfo(ctx, info); err != nil {
			f.log.WarnContext(ctx, "player info not cached", "scope", store.Scope(), "error", err)
		} else {
			out.Player = &info
		}
	}

	out.Destination = sub.Kind.Fallback()
	if raw, ok := store.ConsumeIntent(ctx); ok {
		intent, ok := guard.DecodeIntent(raw)
		switch {
		case !ok:
		case intent.LoginPath != sub.Kind.LoginPath():
			f.log.DebugContext(ctx, "intent belongs to another login screen, dropped", "kind", sub.Kind, "login_path", intent.LoginPath)
		default:
			out.Destination = intent.From.String()
			out.Resumed = true
		}
	}

	f.log.InfoContext(ctx, "login succeeded", "kind", sub.Kind, "scope", store.Scope(), "destination", out.Destination, "resumed", out.Resumed)
	f.observe(sub.Kind, "success")
	f.auditLogin(ctx, sub, store.Scope(), "success", out.Destination)
	return out, nil
}

// Logout clears the session and returns where the browser goes next.
func (f *Flow) Logout(ctx context.Context, store *session.Store, kind Kind) (string, error) {
	dest := PlayerFallback
	if kind == KindAdmin {
		dest = guard.PlayerLoginPath
	}
	if store == nil {
		return dest, nil
	}
	action := "logout." + string(kind)
	if err := store.Deauthenticate(ctx); err != nil {
		f.auditLog(ctx, store.Scope(), action, store.Scope(), "error", err.Error())
		return "", fmt.Errorf("logout: %w", err)
	}
	f.log.InfoContext(ctx, "logout", "kind", kind, "scope", store.Scope())
	f.auditLog(ctx, store.Scope(), action, store.Scope(), "success", dest)
	return dest, nil
}

func (f *Flow) authenticate(ctx context.Context, sub Submission) (authapi.Result, error) {
	switch sub.Kind {
	case KindAdmin:
		return f.auth.Login(ctx, sub.Credentials)
	case KindPlayer:
		return f.auth.LoginPlayer(ctx, sub.Credentials)
	case KindSignup:
		return f.auth.CreatePlayer(ctx, sub.Credentials)
	case KindSocial:
		return f.auth.SocialLogin(ctx, sub.Social)
	default:
		return authapi.Result{}, fmt.Errorf("unknown login kind %q", sub.Kind)
	}
}

func (f *Flow) failure(sub Submission, err error) *Failure {
	var rejected *authapi.Error
	if !errors.As(err, &rejected) {
		if errors.Is(err, authapi.ErrUnavailable) || errors.Is(err, authapi.ErrMalformed) {
			return &Failure{Message: msgUnavailable, Err: err}
		}
		return &Failure{Message: defaultMessage(sub), Err: err}
	}
	// The admin screen always shows its own message.
	if sub.Kind != KindAdmin && rejected.Message != "" {
		return &Failure{Message: rejected.Message, Err: err}
	}
	return &Failure{Message: defaultMessage(sub), Err: err}
}

func defaultMessage(sub Submission) string {
	switch sub.Kind {
	case KindAdmin:
		return msgAdminRejected
	case KindSignup:
		return msgSignupRejected
	case KindSocial:
		switch sub.Social.Provider {
		case authapi.ProviderGoogle:
			return "No se pudo iniciar sesión con Google"
		case authapi.ProviderFacebook:
			return "No se pudo iniciar sesión con Facebook"
		}
		return "No se pudo iniciar sesión"
	default:
		return msgPlayerRejected
	}
}

func playerInfo(sub Submission, res authapi.Result) session.PlayerInfo {
	info := session.PlayerInfo{ID: res.ID, Name: res.Name, Email: res.Email}
	switch sub.Kind {
	case KindSocial:
		info.Provider = string(sub.Social.Provider)
		info.ProviderID = sub.Social.ProviderID
		if info.Name == "" {
			info.Name = sub.Social.Name
		}
		if info.Email == "" {
			info.Email = sub.Social.Email
		}
	default:
		if info.Name == "" {
			info.Name = sub.Credentials.Name
		}
		if info.Email == "" {
			info.Email = sub.Credentials.Email
		}
	}
	return info
}

func (f *Flow) begin(scope string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.pending[scope]; busy {
		return false
	}
	f.pending[scope] = struct{}{}
	return true
}

func (f *Flow) end(scope string) {
	f.mu.Lock()
	delete(f.pending, scope)
	f.mu.Unlock()
}

func (f *Flow) observe(kind Kind, outcome string) {
	if f.observer != nil {
		f.observer.ObserveLogin(string(kind), outcome)
	}
}

func (f *Flow) auditLogin(ctx context.Context, sub Submission, scope, outcome, detail string) {
	f.auditLog(ctx, sub.actor(), "login."+string(sub.Kind), scope, outcome, detail)
}

func (f *Flow) auditLog(ctx context.Context, actor, action, target, outcome, detail string) {
	if f.audit == nil {
		return
	}
	if err := f.audit.Log(actor, action, target, outcome, detail); err != nil {
		f.log.WarnContext(ctx, "audit log failed", "action", action, "error", err)
	}
}
