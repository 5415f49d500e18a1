package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"enarm/portal/internal/config"
	"enarm/portal/internal/guard"
	"enarm/portal/internal/login"
	"enarm/portal/internal/metrics"
	"enarm/portal/internal/routes"
	"enarm/portal/internal/session"
	"enarm/portal/internal/storage"
)

type Deps struct {
	Storage         storage.Storage
	Flow            *login.Flow
	Routes          routes.Table
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
	Logger          *slog.Logger
	Cookie          config.CookieConfig
	FrontendDistDir string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory()
	}
	if len(deps.Routes.Routes) == 0 {
		if t, err := routes.Default(); err == nil {
			deps.Routes = t
		}
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "portal_ctx"
	}
	var observer guard.Observer
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	shell := newSPA(deps.FrontendDistDir)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(log))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := probeStorage(r.Context(), deps.Storage); err != nil {
			log.WarnContext(r.Context(), "storage not ready", "error", err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.HandlerFor(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(browserContext(deps.Storage, deps.Cookie, log))

		r.Get("/v1/session", sessionView)
		registerLoginHandlers(r, deps.Flow, log)
		registerRoutes(r, deps, shell, observer, log)
	})

	r.NotFound(notFound(deps.Routes.Fallback, shell))
	return r
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// browserContext identifies the browser by an opaque cookie and attaches the
// session store scoped to it.
func browserContext(backend storage.Storage, cookie config.CookieConfig, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cookie.Name); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookie.Name,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cookie.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cookie.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			store := session.NewStore(backend, id, log)
			next.ServeHTTP(w, r.WithContext(session.WithStore(r.Context(), store)))
		})
	}
}

func probeStorage(ctx context.Context, backend storage.Storage) error {
	_, err := backend.Get(ctx, "_probe", "ready")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func loggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if id := middleware.GetReqID(r.Context()); id != "" {
				w.Header().Set("X-Request-Id", id)
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote", r.RemoteAddr,
			)
		})
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
