package routes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "/", table.Fallback)

	tests := []struct {
		path   string
		screen string
		guard  string
		params map[string]string
	}{
		{path: "/dashboard/players", screen: "users", guard: "admin"},
		{path: "/dashboard/examenes", screen: "exams", guard: "admin"},
		{path: "/dashboard/casos/2", screen: "cases", guard: "admin", params: map[string]string{"page": "2"}},
		{path: "/caso/abc", screen: "exam", guard: "player", params: map[string]string{"identificador": "abc"}},
		{path: "/", screen: "exam", guard: "player"},
		{path: "/admin", screen: "admin-login", guard: "public"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, params, ok := table.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, KindScreen, r.Kind())
			assert.Equal(t, tt.screen, r.Screen)
			assert.Equal(t, tt.guard, r.Guard)
			assert.Equal(t, tt.params, params)
		})
	}

	r, _, ok := table.Match("/loginfb")
	require.True(t, ok)
	assert.Equal(t, KindRedirect, r.Kind())
	assert.Equal(t, "/login", r.Redirect)

	r, _, ok = table.Match("/dashboard/logout")
	require.True(t, ok)
	assert.Equal(t, KindLogout, r.Kind())
	assert.Equal(t, "admin", r.Logout)

	_, _, ok = table.Match("/no/such/screen")
	assert.False(t, ok)
}

func TestParseRejectsInvalidManifests(t *testing.T) {
	tests := map[string]string{
		"empty":            `routes: []`,
		"unknown guard":    "routes:\n  - path: /x\n    screen: x\n    guard: root\n",
		"missing guard":    "routes:\n  - path: /x\n    screen: x\n",
		"duplicate":        "routes:\n  - path: /x\n    screen: x\n    guard: public\n  - path: /x\n    redirect: /\n",
		"off-site":         "routes:\n  - path: /x\n    redirect: https://evil.example\n",
		"two kinds":        "routes:\n  - path: /x\n    screen: x\n    guard: public\n    redirect: /\n",
		"relative path":    "routes:\n  - path: x\n    redirect: /\n",
		"bad logout":       "routes:\n  - path: /x\n    logout: everyone\n",
		"bad fallback":     "fallback: //evil\nroutes:\n  - path: /x\n    redirect: /\n",
		"not yaml mapping": `- just a list`,
	}
	for name, manifest := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(manifest))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	def, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, def.Routes)

	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - path: /only\n    screen: only\n    guard: player\n"), 0o644))
	table, err := Load(path)
	require.NoError(t, err)
	require.Len(t, table.Routes, 1)
	assert.Equal(t, "/", table.Fallback)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
