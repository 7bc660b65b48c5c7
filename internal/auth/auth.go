package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const keyID ctxKey = 0

// Store is a static in-memory key store: secret -> keyID. Authentication is
// optional at this layer; unauthenticated requests fall back to IP-based
// quota identity downstream.
type Store struct {
	header   string
	bySecret map[string]string
}

// NewStatic creates a key store reading secrets from the given header.
func NewStatic(header string, pairs map[string]string) *Store {
	h := header
	if h == "" {
		h = "X-API-Key"
	}
	return &Store{header: h, bySecret: pairs}
}

// WithKeyID injects the key ID into context.
func WithKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyID, id)
}

// KeyIDFrom extracts the key ID from context (if present).
func KeyIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(keyID)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Middleware resolves the API key, if any, into a key ID on the request
// context. A present-but-unknown key is rejected; a missing key passes
// through anonymously.
func (s *Store) Middleware(skipPaths map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hname := s.header

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			secret := strings.TrimSpace(r.Header.Get(hname))
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, ok := s.bySecret[secret]
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"API key not recognized"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithKeyID(r.Context(), id)))
		})
	}
}
