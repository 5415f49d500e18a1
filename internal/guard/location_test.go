package guard

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("/dashboard/casos/2?tab=preguntas#q3")
	require.NoError(t, err)
	assert.Equal(t, Location{Pathname: "/dashboard/casos/2", Search: "?tab=preguntas", Hash: "#q3"}, loc)
	assert.Equal(t, "/dashboard/casos/2?tab=preguntas#q3", loc.String())
}

func TestParseLocationRejectsOffSiteTargets(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://evil.example/dashboard",
		"//evil.example/dashboard",
		"/\\evil.example",
		"javascript:alert(1)",
		"dashboard",
	} {
		_, err := ParseLocation(raw)
		assert.Error(t, err, raw)
	}
}

func TestIsLocal(t *testing.T) {
	assert.True(t, Location{Pathname: "/"}.IsLocal())
	assert.True(t, Location{Pathname: "/examenes", Search: "?a=1"}.IsLocal())
	assert.False(t, Location{}.IsLocal())
	assert.False(t, Location{Pathname: "//host"}.IsLocal())
	assert.False(t, Location{Pathname: "/a\nb"}.IsLocal())
	assert.False(t, Location{Pathname: "/a", Search: "a=1"}.IsLocal())
}

func TestFromURL(t *testing.T) {
	u, err := url.Parse("/dashboard/casos/2?x=1")
	require.NoError(t, err)
	assert.Equal(t, Location{Pathname: "/dashboard/casos/2", Search: "?x=1"}, FromURL(u))
	assert.Equal(t, Location{Pathname: "/"}, FromURL(&url.URL{}))
	assert.Equal(t, Location{Pathname: "/"}, FromURL(nil))
}

func TestFromURLKeepsEscapedSegments(t *testing.T) {
	u, err := url.Parse("/caso/a%3Fb%23c?tab=1")
	require.NoError(t, err)

	loc := FromURL(u)
	assert.Equal(t, Location{Pathname: "/caso/a%3Fb%23c", Search: "?tab=1"}, loc)
	assert.Equal(t, "/caso/a%3Fb%23c?tab=1", loc.String())

	parsed, err := ParseLocation(loc.String())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)

	slash, err := url.Parse("/caso/a%2Fb")
	require.NoError(t, err)
	assert.Equal(t, "/caso/a%2Fb", FromURL(slash).Pathname)
}

func TestIntentRoundTrip(t *testing.T) {
	raw, err := EncodeIntent(ResumeState{LoginPath: AdminLoginPath, From: Location{Pathname: "/dashboard/casos/2"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"login_path":"/admin","from":{"pathname":"/dashboard/casos/2"}}`, string(raw))

	got, ok := DecodeIntent(raw)
	require.True(t, ok)
	assert.Equal(t, AdminLoginPath, got.LoginPath)
	assert.Equal(t, "/dashboard/casos/2", got.From.Pathname)

	_, ok = DecodeIntent([]byte(`{"from":{"pathname":"//evil.example"}}`))
	assert.False(t, ok)
	_, ok = DecodeIntent([]byte(`not json`))
	assert.False(t, ok)
	_, ok = DecodeIntent(nil)
	assert.False(t, ok)
}
