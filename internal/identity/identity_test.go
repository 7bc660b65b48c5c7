package identity

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPHeaderPriority(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:4321"
	r.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")
	r.Header.Set("X-Real-IP", "2.2.2.2")
	r.Header.Set("CF-Connecting-IP", "1.1.1.1")

	assert.Equal(t, "1.1.1.1", ClientIP(r))

	r.Header.Del("CF-Connecting-IP")
	assert.Equal(t, "2.2.2.2", ClientIP(r))

	r.Header.Del("X-Real-IP")
	assert.Equal(t, "3.3.3.3", ClientIP(r))
}

func TestClientIPForwardedForFirstEntryTrimmed(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "  5.6.7.8 , 9.9.9.9")
	assert.Equal(t, "5.6.7.8", ClientIP(r))
}

func TestClientIPRemoteAddrFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:55555"
	assert.Equal(t, "192.0.2.1", ClientIP(r))
}

func TestClientIPUnknown(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ""
	assert.Equal(t, Unknown, ClientIP(r))
}

func TestPseudonymStable(t *testing.T) {
	h := NewHasher("salt-a")

	a1, err := h.Pseudonym("user-42")
	require.NoError(t, err)
	a2, err := h.Pseudonym("user-42")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Len(t, a1, 32)
	assert.NotContains(t, a1, "user-42")
}

func TestPseudonymDistinguishesSubjectsAndSalts(t *testing.T) {
	h := NewHasher("salt-a")

	a, err := h.Pseudonym("user-42")
	require.NoError(t, err)
	b, err := h.Pseudonym("user-43")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	other := NewHasher("salt-b")
	c, err := other.Pseudonym("user-42")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestPseudonymEmptySubjectFailsClosed(t *testing.T) {
	h := NewHasher("salt-a")
	_, err := h.Pseudonym("")
	require.ErrorIs(t, err, ErrEmptySubject)
}
