package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"enarm/portal/internal/auth"
	"enarm/portal/internal/authapi"
	"enarm/portal/internal/guard"
	"enarm/portal/internal/login"
	"enarm/portal/internal/session"
	"enarm/portal/internal/storage"
)

func openTestPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration tests")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.Ping(); err != nil {
		t.Fatalf("db.Ping() error: %v", err)
	}
	return db
}

func TestPostgresSessionStoreRoundTrip(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()

	backend, err := storage.NewPostgres(db)
	if err != nil {
		t.Fatalf("NewPostgres() error: %v", err)
	}

	scope := fmt.Sprintf("itest-ctx-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Exec("DELETE FROM portal_storage WHERE scope = $1", scope)
	})

	store := session.NewStore(backend, scope, nil)
	if store.IsAuthenticated(ctx) {
		t.Fatalf("expected fresh context to be unauthenticated")
	}
	if err := store.Authenticate(ctx, "tok-1", session.RoleAdmin); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if !store.IsAuthorized(ctx, session.RoleAdmin) {
		t.Fatalf("expected admin to be authorized")
	}
	if store.IsAuthorized(ctx, session.RolePlayer) {
		t.Fatalf("expected admin not to pass the player role check")
	}

	// A second store on the same scope sees the same state.
	other := session.NewStore(backend, scope, nil)
	if tok, ok := other.Token(ctx); !ok || tok != "tok-1" {
		t.Fatalf("expected shared token, got %q %v", tok, ok)
	}

	intent, err := guard.EncodeIntent(guard.ResumeState{LoginPath: guard.AdminLoginPath, From: guard.Location{Pathname: "/dashboard/casos/2"}})
	if err != nil {
		t.Fatalf("EncodeIntent() error: %v", err)
	}
	if err := store.SaveIntent(ctx, intent); err != nil {
		t.Fatalf("SaveIntent() error: %v", err)
	}
	if _, ok := other.ConsumeIntent(ctx); !ok {
		t.Fatalf("expected saved intent")
	}
	if _, ok := store.ConsumeIntent(ctx); ok {
		t.Fatalf("expected intent to be consumed once")
	}

	if err := store.Deauthenticate(ctx); err != nil {
		t.Fatalf("Deauthenticate() error: %v", err)
	}
	if other.IsAuthenticated(ctx) {
		t.Fatalf("expected session to be cleared")
	}
}

func TestPostgresLocalAuthorityLogin(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()

	users, err := auth.NewPostgresUserStore(ctx, db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}
	svc, err := auth.NewService(users, auth.ServiceConfig{BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	email := fmt.Sprintf("itest_%d@enarm.local", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Exec("DELETE FROM portal_users WHERE email = $1", email)
	})

	created, err := svc.EnsureAdmin(ctx, email, "Password123!", "Integration")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin() = %v, %v", created, err)
	}

	backend, err := storage.NewPostgres(db)
	if err != nil {
		t.Fatalf("NewPostgres() error: %v", err)
	}
	scope := fmt.Sprintf("itest-ctx-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Exec("DELETE FROM portal_storage WHERE scope = $1", scope)
	})
	store := session.NewStore(backend, scope, nil)

	flow, err := login.NewFlow(svc)
	if err != nil {
		t.Fatalf("NewFlow() error: %v", err)
	}

	if _, err := flow.Submit(ctx, store, login.Submission{
		Kind:        login.KindAdmin,
		Credentials: authapi.Credentials{Email: email, Password: "wrong-password"},
	}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if store.IsAuthenticated(ctx) {
		t.Fatalf("expected failed login to leave the session empty")
	}

	out, err := flow.Submit(ctx, store, login.Submission{
		Kind:        login.KindAdmin,
		Credentials: authapi.Credentials{Email: email, Password: "Password123!"},
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if out.Destination != login.AdminFallback {
		t.Fatalf("expected %s, got %s", login.AdminFallback, out.Destination)
	}
	if !store.IsAuthorized(ctx, session.RoleAdmin) {
		t.Fatalf("expected admin session")
	}
}
