package guard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enarm/portal/internal/session"
	"enarm/portal/internal/storage"
)

type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) ObserveDecision(guard, target string, allowed bool) {
	o.calls = append(o.calls, fmt.Sprintf("%s/%s/%t", guard, target, allowed))
}

func withStore(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(session.WithStore(r.Context(), store)))
		})
	}
}

func caseScreen(got *Props) Component {
	return Component{Name: "case", Render: func(w http.ResponseWriter, _ *http.Request, p Props) {
		*got = p
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("case " + p.Params["id"]))
	}}
}

func TestHandlerDeniesAndSavesIntent(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(storage.NewMemory(), "ctx-1", nil)
	obs := &recordingObserver{}
	var props Props

	r := chi.NewRouter()
	r.Use(withStore(store))
	r.Method(http.MethodGet, "/dashboard/casos/{id}", Handler(Admin, caseScreen(&props), WithObserver(obs)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/casos/2", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	assert.Equal(t, []string{"admin/case/false"}, obs.calls)

	raw, ok := store.ConsumeIntent(ctx)
	require.True(t, ok)
	intent, ok := DecodeIntent(raw)
	require.True(t, ok)
	assert.Equal(t, Location{Pathname: "/dashboard/casos/2"}, intent.From)
	assert.Equal(t, AdminLoginPath, intent.LoginPath)
}

func TestHandlerAllowsWithRouteParams(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(storage.NewMemory(), "ctx-1", nil)
	require.NoError(t, store.Authenticate(ctx, "abc", session.RoleAdmin))
	var props Props

	r := chi.NewRouter()
	r.Use(withStore(store))
	r.Method(http.MethodGet, "/dashboard/casos/{id}", Handler(Admin, caseScreen(&props)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/casos/2?from=/dashboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "case 2", rec.Body.String())
	assert.Equal(t, map[string]string{"id": "2"}, props.Params)
	require.NotNil(t, props.From)
	assert.Equal(t, "/dashboard", props.From.Pathname)

	_, ok := store.ConsumeIntent(ctx)
	assert.False(t, ok, "allowed navigation must not leave an intent behind")
}

func TestHandlerWithoutStoreFailsClosed(t *testing.T) {
	h := Handler(Player, Element{Name: "exams", Handler: http.NotFoundHandler()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/examenes", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestHandlerRendersElement(t *testing.T) {
	store := session.NewStore(storage.NewMemory(), "ctx-1", nil)
	require.NoError(t, store.Authenticate(context.Background(), "xyz", session.RolePlayer))
	shell := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>shell</html>"))
	})

	h := withStore(store)(Handler(Player, Element{Name: "shell", Handler: shell}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/examenes", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shell")
}

func TestHandlerBrokenTargetIsServerError(t *testing.T) {
	h := Handler(Public, Component{Name: "broken"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDispatch(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Error(t, Dispatch(nil, rec, req, Props{}))
	assert.Error(t, Dispatch(Element{Name: "empty"}, rec, req, Props{}))

	called := false
	err := Dispatch(Component{Name: "c", Render: func(http.ResponseWriter, *http.Request, Props) { called = true }}, rec, req, Props{})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestChiParamsOutsideRouter(t *testing.T) {
	assert.Nil(t, ChiParams(httptest.NewRequest(http.MethodGet, "/", nil)))
}
