package routing

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRoute(t *testing.T, id, prefix string, methods ...string) *Route {
	t.Helper()
	u, err := url.Parse("http://localhost:3000")
	require.NoError(t, err)
	ms := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		ms[m] = struct{}{}
	}
	return &Route{ID: id, Prefix: prefix, Methods: ms, UpURL: u}
}

func TestMatchPrefixAndMethod(t *testing.T) {
	r := New()
	r.Add(mustRoute(t, "upload", "/api/resume/upload", "POST"))
	r.Add(mustRoute(t, "app", "/", "GET", "POST"))

	rt, ok := r.Match("post", "/api/resume/upload")
	require.True(t, ok)
	assert.Equal(t, "upload", rt.ID)

	rt, ok = r.Match("POST", "/api/resume/upload/v2")
	require.True(t, ok)
	assert.Equal(t, "upload", rt.ID)

	// wrong method falls through to the catch-all
	rt, ok = r.Match("GET", "/api/resume/upload")
	require.True(t, ok)
	assert.Equal(t, "app", rt.ID)

	_, ok = r.Match("DELETE", "/api/resume/upload")
	require.False(t, ok)
}

func TestMatchNoPartialSegment(t *testing.T) {
	r := New()
	r.Add(mustRoute(t, "upload", "/api/resume", "POST"))

	_, ok := r.Match("POST", "/api/resumes")
	assert.False(t, ok)
}

func TestRouteContextRoundTrip(t *testing.T) {
	rt := mustRoute(t, "x", "/x", "GET")
	req := httptest.NewRequest("GET", "/x", nil)

	_, ok := RouteFrom(req)
	require.False(t, ok)

	req = WithRoute(req, rt)
	got, ok := RouteFrom(req)
	require.True(t, ok)
	assert.Same(t, rt, got)
}
